package comparison

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

const testPage = `<html>
<head>
<title>Store front</title>
<meta name="description" content="A small store front used in comparison tests.">
<link rel="canonical" href="https://example.com/store">
</head>
<body>
<p>Welcome to the store front page.</p>
<a href="/catalog">Catalog</a>
<img src="/img/banner.png">
</body>
</html>`

func newTestEngine(t *testing.T) (*Engine, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewEngine(store, 10, true, zap.NewNop()), store
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, store *artifact.Store, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, store.Write(path, buf.Bytes()))
}

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
)

func TestCompareIdenticalInputsIsIdentity(t *testing.T) {
	engine, store := newTestEngine(t)
	url := "https://example.com/store"

	baseHTML := store.Path("site-1", url, "baseline", artifact.KindHTML)
	require.NoError(t, store.Write(baseHTML, []byte(testPage)))

	img := solidImage(100, 100, white)
	baseShot := store.Path("site-1", url, "baseline", artifact.KindScreenshot)
	freshShot := store.Path("site-1", url, "20260101T000000", artifact.KindScreenshot)
	writePNG(t, store, baseShot, img)
	writePNG(t, store, freshShot, img)

	out := engine.Compare("site-1", Snapshot{
		URL:            url,
		Label:          "20260101T000000",
		HTML:           []byte(testPage),
		ScreenshotPath: freshShot,
	}, domain.BaselineEntry{HTMLPath: baseHTML, ScreenshotPath: baseShot}, nil)

	require.Equal(t, OutcomeOK, out.Kind)
	result := out.Result
	assert.True(t, result.HTMLCompared)
	assert.True(t, result.VisualCompared)
	assert.Equal(t, 1.0, result.TextSimilarity)
	assert.Equal(t, 1.0, result.StructureSimilarity)
	assert.Zero(t, result.VisualDiffPercent)
	require.NotNil(t, result.PerceptualSimilarity)
	assert.InDelta(t, 1.0, *result.PerceptualSimilarity, 1e-9)
	assert.False(t, result.DimensionsDiffer)
	assert.Nil(t, result.MetaTagDiff)
	assert.True(t, result.LinkDiff.Empty())
	assert.True(t, result.ImageDiff.Empty())
	assert.Nil(t, result.CanonicalChange)
	assert.Empty(t, result.DiffImagePath)
}

func TestCompareDetectsContentAndMetaChanges(t *testing.T) {
	engine, store := newTestEngine(t)
	url := "https://example.com/store"

	baseHTML := store.Path("site-1", url, "baseline", artifact.KindHTML)
	require.NoError(t, store.Write(baseHTML, []byte(testPage)))

	changed := `<html>
<head>
<title>Store front</title>
<meta name="description" content="A completely different description after the rewrite.">
<link rel="canonical" href="https://example.com/shop">
</head>
<body>
<p>Entirely new copy for the store front after the big rewrite.</p>
<a href="/sale">Sale</a>
<img src="/img/banner.png">
</body>
</html>`

	out := engine.Compare("site-1", Snapshot{
		URL:   url,
		Label: "20260101T000000",
		HTML:  []byte(changed),
	}, domain.BaselineEntry{HTMLPath: baseHTML}, nil)

	require.Equal(t, OutcomeOK, out.Kind)
	result := out.Result
	assert.Less(t, result.TextSimilarity, 1.0)
	assert.Greater(t, result.TextSimilarity, 0.0)

	require.Contains(t, result.MetaTagDiff, "description")
	assert.Equal(t, "A small store front used in comparison tests.", result.MetaTagDiff["description"].Old)

	assert.Contains(t, result.LinkDiff.Added, "https://example.com/sale")
	assert.Contains(t, result.LinkDiff.Removed, "https://example.com/catalog")
	assert.True(t, result.ImageDiff.Empty())

	require.NotNil(t, result.CanonicalChange)
	assert.Equal(t, "https://example.com/store", result.CanonicalChange.Old)
	assert.Equal(t, "https://example.com/shop", result.CanonicalChange.New)
}

func TestCompareVisualTenPercentBlock(t *testing.T) {
	engine, store := newTestEngine(t)
	url := "https://example.com/"

	base := solidImage(100, 100, white)
	fresh := solidImage(100, 100, white)
	for y := 0; y < 10; y++ {
		for x := 0; x < 100; x++ {
			fresh.SetRGBA(x, y, black)
		}
	}

	baseShot := store.Path("site-1", url, "baseline", artifact.KindScreenshot)
	freshShot := store.Path("site-1", url, "fresh", artifact.KindScreenshot)
	writePNG(t, store, baseShot, base)
	writePNG(t, store, freshShot, fresh)

	out := engine.Compare("site-1", Snapshot{
		URL:            url,
		Label:          "fresh",
		ScreenshotPath: freshShot,
	}, domain.BaselineEntry{ScreenshotPath: baseShot}, nil)

	require.Equal(t, OutcomeOK, out.Kind)
	result := out.Result
	assert.InDelta(t, 10.0, result.VisualDiffPercent, 1e-9)
	require.NotNil(t, result.PerceptualSimilarity)
	assert.Less(t, *result.PerceptualSimilarity, 1.0)

	// The highlight image marks changed pixels red and keeps the rest.
	require.NotEmpty(t, result.DiffImagePath)
	data, err := store.Read(result.DiffImagePath)
	require.NoError(t, err)
	diffImg, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, _ := diffImg.At(5, 5).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
	r, g, b, _ = diffImg.At(50, 50).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}

func TestCompareIgnoreRegionMasksChange(t *testing.T) {
	engine, store := newTestEngine(t)
	url := "https://example.com/"

	base := solidImage(100, 100, white)
	fresh := solidImage(100, 100, white)
	for y := 0; y < 10; y++ {
		for x := 0; x < 100; x++ {
			fresh.SetRGBA(x, y, black)
		}
	}

	baseShot := store.Path("site-1", url, "baseline", artifact.KindScreenshot)
	freshShot := store.Path("site-1", url, "fresh", artifact.KindScreenshot)
	writePNG(t, store, baseShot, base)
	writePNG(t, store, freshShot, fresh)

	regions := []domain.IgnoreRegion{{X: 0, Y: 0, Width: 100, Height: 10}}
	out := engine.Compare("site-1", Snapshot{
		URL:            url,
		Label:          "fresh",
		ScreenshotPath: freshShot,
	}, domain.BaselineEntry{ScreenshotPath: baseShot}, regions)

	require.Equal(t, OutcomeOK, out.Kind)
	assert.Zero(t, out.Result.VisualDiffPercent)
	require.NotNil(t, out.Result.PerceptualSimilarity)
	assert.InDelta(t, 1.0, *out.Result.PerceptualSimilarity, 1e-9)
}

func TestCompareDimensionMismatchFlaggedNotFatal(t *testing.T) {
	engine, store := newTestEngine(t)
	url := "https://example.com/"

	baseShot := store.Path("site-1", url, "baseline", artifact.KindScreenshot)
	freshShot := store.Path("site-1", url, "fresh", artifact.KindScreenshot)
	writePNG(t, store, baseShot, solidImage(100, 100, white))
	writePNG(t, store, freshShot, solidImage(120, 140, white))

	out := engine.Compare("site-1", Snapshot{
		URL:            url,
		Label:          "fresh",
		ScreenshotPath: freshShot,
	}, domain.BaselineEntry{ScreenshotPath: baseShot}, nil)

	require.Equal(t, OutcomeOK, out.Kind)
	assert.True(t, out.Result.DimensionsDiffer)
	assert.Zero(t, out.Result.VisualDiffPercent)
}

func TestCompareNoBaseline(t *testing.T) {
	engine, _ := newTestEngine(t)

	out := engine.Compare("site-1", Snapshot{
		URL:  "https://example.com/",
		HTML: []byte(testPage),
	}, domain.BaselineEntry{}, nil)

	assert.Equal(t, OutcomeNoBaseline, out.Kind)
	assert.Nil(t, out.Result)
	assert.NoError(t, out.Err)
}

func TestCompareUnreadableBaselineIsFailure(t *testing.T) {
	engine, _ := newTestEngine(t)

	out := engine.Compare("site-1", Snapshot{
		URL:  "https://example.com/",
		HTML: []byte(testPage),
	}, domain.BaselineEntry{HTMLPath: "/nonexistent/baseline.html"}, nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.True(t, errors.Is(out.Err, domain.ErrComparisonFailure))
	assert.Nil(t, out.Result)
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		fresh string
		want  float64
	}{
		{name: "identical", base: "the quick brown fox", fresh: "the quick brown fox", want: 1.0},
		{name: "both empty", base: "", fresh: "", want: 1.0},
		{name: "base empty", base: "", fresh: "some new text", want: 0.0},
		{name: "fresh empty", base: "old text here", fresh: "", want: 0.0},
		{name: "one token changed", base: "the quick brown fox", fresh: "the quick brown dog", want: 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TextSimilarity(tt.base, tt.fresh), 1e-9)
		})
	}
}

func TestTextSimilarityIgnoresWhitespaceShape(t *testing.T) {
	base := "hello   world\n\tagain"
	fresh := "hello world again"
	assert.Equal(t, 1.0, TextSimilarity(base, fresh))
}

func TestStructureSimilarity(t *testing.T) {
	a := []byte(`<html><body><p>one</p><p>two</p></body></html>`)
	sameShape := []byte(`<html><body><p>uno</p><p>dos</p></body></html>`)
	extraDiv := []byte(`<html><body><div><p>one</p><p>two</p></div></body></html>`)

	assert.Equal(t, 1.0, StructureSimilarity(a, sameShape))
	got := StructureSimilarity(a, extraDiv)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
	assert.Equal(t, 1.0, StructureSimilarity(nil, nil))
}

func TestStructureSimilarityAttributesAndScripts(t *testing.T) {
	withClass := []byte(`<div class="hero"><p>text</p></div>`)
	otherClass := []byte(`<div class="banner"><p>text</p></div>`)
	assert.Less(t, StructureSimilarity(withClass, otherClass), 1.0,
		"attribute values are part of the skeleton")

	withScript := []byte(`<div><script>var a = 1;</script><p>x</p></div>`)
	otherScript := []byte(`<div><script>var b = 2;</script><style>p{}</style><p>x</p></div>`)
	assert.Equal(t, 1.0, StructureSimilarity(withScript, otherScript),
		"script and style nodes are not structure")
}

func TestDiffMetaTags(t *testing.T) {
	base := map[string]string{"description": "old", "keywords": "a,b", "author": "sam"}
	fresh := map[string]string{"description": "new", "keywords": "a,b", "robots": "noindex"}

	diff := DiffMetaTags(base, fresh)
	require.Len(t, diff, 3)
	assert.Equal(t, domain.ValueChange{Old: "old", New: "new"}, diff["description"])
	assert.Equal(t, domain.ValueChange{Old: "sam", New: ""}, diff["author"])
	assert.Equal(t, domain.ValueChange{Old: "", New: "noindex"}, diff["robots"])

	assert.Nil(t, DiffMetaTags(base, base))
}

func TestDiffStringSets(t *testing.T) {
	base := []string{"a", "b", "c"}
	fresh := []string{"c", "b", "d", "e"}

	diff := DiffStringSets(base, fresh)
	assert.Equal(t, []string{"d", "e"}, diff.Added)
	assert.Equal(t, []string{"a"}, diff.Removed)

	assert.True(t, DiffStringSets(base, []string{"c", "a", "b"}).Empty(), "order is not a change")
}

func TestSSIMSkipsTinyImages(t *testing.T) {
	a := solidImage(5, 5, white)
	b := solidImage(5, 5, white)
	assert.Nil(t, SSIM(a, b))

	c := solidImage(8, 8, white)
	d := solidImage(8, 8, white)
	got := SSIM(c, d)
	require.NotNil(t, got)
	assert.InDelta(t, 1.0, *got, 1e-9)
}
