package comparison

import "image"

// Stabilizing constants from the SSIM reference formulation, scaled to
// the 8-bit dynamic range: C1 = (0.01*255)^2, C2 = (0.03*255)^2.
const (
	ssimWindow = 7
	ssimC1     = 6.5025
	ssimC2     = 58.5225
)

// SSIM returns the mean structural similarity index of two equal-sized
// images over their grayscale planes, using a uniform sliding window.
// The result lies in [-1, 1] with 1 meaning structurally identical.
// Returns nil when the sizes disagree or either dimension is smaller
// than the window: the pass is skipped, not guessed.
func SSIM(a, b *image.RGBA) *float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w != b.Bounds().Dx() || h != b.Bounds().Dy() {
		return nil
	}
	if w < ssimWindow || h < ssimWindow {
		return nil
	}

	grayA := grayPlane(a)
	grayB := grayPlane(b)

	// Summed-area tables make every window statistic O(1), so the full
	// stride-1 sweep stays cheap even on viewport-sized captures.
	sumA := integralTable(grayA, w, h)
	sumB := integralTable(grayB, w, h)
	sumAA := integralProductTable(grayA, grayA, w, h)
	sumBB := integralProductTable(grayB, grayB, w, h)
	sumAB := integralProductTable(grayA, grayB, w, h)

	n := float64(ssimWindow * ssimWindow)
	var total float64
	var windows int
	for y := 0; y+ssimWindow <= h; y++ {
		for x := 0; x+ssimWindow <= w; x++ {
			muA := windowSum(sumA, w, x, y) / n
			muB := windowSum(sumB, w, x, y) / n
			varA := windowSum(sumAA, w, x, y)/n - muA*muA
			varB := windowSum(sumBB, w, x, y)/n - muB*muB
			cov := windowSum(sumAB, w, x, y)/n - muA*muB

			num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
			den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
			total += num / den
			windows++
		}
	}

	mean := total / float64(windows)
	return &mean
}

// grayPlane converts img to a float64 luma plane with the BT.601
// weights the standard library's color conversion uses.
func grayPlane(img *image.RGBA) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < w; x++ {
			r := float64(img.Pix[off+0])
			g := float64(img.Pix[off+1])
			b := float64(img.Pix[off+2])
			plane[y*w+x] = 0.299*r + 0.587*g + 0.114*b
			off += 4
		}
	}
	return plane
}

// integralTable returns the (w+1)x(h+1) summed-area table of plane.
func integralTable(plane []float64, w, h int) []float64 {
	table := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += plane[y*w+x]
			table[(y+1)*(w+1)+(x+1)] = table[y*(w+1)+(x+1)] + rowSum
		}
	}
	return table
}

// integralProductTable returns the summed-area table of a[i]*b[i].
func integralProductTable(a, b []float64, w, h int) []float64 {
	table := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += a[y*w+x] * b[y*w+x]
			table[(y+1)*(w+1)+(x+1)] = table[y*(w+1)+(x+1)] + rowSum
		}
	}
	return table
}

// windowSum reads one window's sum out of a summed-area table built for
// plane width w.
func windowSum(table []float64, w, x, y int) float64 {
	w1 := w + 1
	x2 := x + ssimWindow
	y2 := y + ssimWindow
	return table[y2*w1+x2] - table[y*w1+x2] - table[y2*w1+x] + table[y*w1+x]
}
