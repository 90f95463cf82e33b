package comparison

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"go.uber.org/zap"
)

// compareScreenshots fills the pixel and perceptual channels. When the
// two captures disagree on size, the fresh one is scaled to the
// baseline's dimensions and the mismatch is flagged on the result
// instead of being treated as a 100% change. Ignore regions are blacked
// out on both sides before any pixel is read.
func (e *Engine) compareScreenshots(websiteID string, snap Snapshot, base domain.BaselineEntry, regions []domain.IgnoreRegion, result *domain.ComparisonResult) error {
	baseImg, err := e.loadImage(base.ScreenshotPath)
	if err != nil {
		return fmt.Errorf("%w: baseline screenshot for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}
	freshImg, err := e.loadImage(snap.ScreenshotPath)
	if err != nil {
		return fmt.Errorf("%w: fresh screenshot for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}

	result.VisualCompared = true

	baseRGBA := toRGBA(baseImg)
	freshRGBA := toRGBA(freshImg)

	if !baseRGBA.Bounds().Size().Eq(freshRGBA.Bounds().Size()) {
		result.DimensionsDiffer = true
		freshRGBA = resizeTo(freshRGBA, baseRGBA.Bounds().Dx(), baseRGBA.Bounds().Dy())
		e.logger.Debug("screenshot dimensions differ, fresh capture rescaled",
			zap.String("url", snap.URL))
	}

	maskRegions(baseRGBA, regions)
	maskRegions(freshRGBA, regions)

	percent, diffImg := pixelDiff(baseRGBA, freshRGBA, e.pixelTolerance)
	result.VisualDiffPercent = percent
	result.PerceptualSimilarity = SSIM(baseRGBA, freshRGBA)

	// The highlight image is advisory output; failing to write it never
	// fails the comparison.
	if e.writeDiffImages && percent > 0 {
		path := e.artifacts.Path(websiteID, snap.URL, snap.Label+"-diff", artifact.KindScreenshot)
		var buf bytes.Buffer
		if err := png.Encode(&buf, diffImg); err != nil {
			e.logger.Warn("diff image encode failed", zap.String("url", snap.URL), zap.Error(err))
		} else if err := e.artifacts.Write(path, buf.Bytes()); err != nil {
			e.logger.Warn("diff image write failed", zap.String("path", path), zap.Error(err))
		} else {
			result.DiffImagePath = path
		}
	}

	return nil
}

func (e *Engine) loadImage(path string) (image.Image, error) {
	data, err := e.artifacts.Read(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// pixelDiff counts pixels whose red, green or blue channel differs by
// more than tolerance and renders a highlight image: unchanged pixels
// carry the baseline, differing pixels are drawn solid red.
func pixelDiff(base, fresh *image.RGBA, tolerance int) (float64, *image.RGBA) {
	bounds := base.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	diffImg := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return 0, diffImg
	}

	freshBounds := fresh.Bounds()
	differing := 0
	for y := 0; y < h; y++ {
		bi := base.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		fi := fresh.PixOffset(freshBounds.Min.X, freshBounds.Min.Y+y)
		di := diffImg.PixOffset(0, y)
		for x := 0; x < w; x++ {
			if channelsDiffer(base.Pix[bi:bi+3], fresh.Pix[fi:fi+3], tolerance) {
				differing++
				diffImg.Pix[di+0] = 0xff
				diffImg.Pix[di+1] = 0x00
				diffImg.Pix[di+2] = 0x00
				diffImg.Pix[di+3] = 0xff
			} else {
				copy(diffImg.Pix[di:di+4], base.Pix[bi:bi+4])
			}
			bi += 4
			fi += 4
			di += 4
		}
	}

	return 100 * float64(differing) / float64(w*h), diffImg
}

func channelsDiffer(a, b []uint8, tolerance int) bool {
	for i := 0; i < 3; i++ {
		delta := int(a[i]) - int(b[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			return true
		}
	}
	return false
}

// maskRegions blacks out each ignore region in place so masked areas
// read identical on both sides of the diff. Regions are clipped to the
// image bounds; a region entirely outside is a no-op.
func maskRegions(img *image.RGBA, regions []domain.IgnoreRegion) {
	for _, reg := range regions {
		r := image.Rect(reg.X, reg.Y, reg.X+reg.Width, reg.Y+reg.Height).
			Add(img.Bounds().Min).
			Intersect(img.Bounds())
		if !r.Empty() {
			draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
		}
	}
}

func resizeTo(img *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
