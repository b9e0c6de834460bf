package opencv

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camwatch/internal/motion"
)

func grayFrame(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
	return img
}

func fillGray(img *image.Gray, r image.Rectangle, v uint8) {
	draw.Draw(img, r, image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
}

func newPrimitives(t *testing.T) *Primitives {
	t.Helper()
	p := NewPrimitives()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPreprocessUsesLuma(t *testing.T) {
	p := newPrimitives(t)

	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)

	out, err := p.Preprocess(src, 11)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
	// 0.299 * 255 for pure red.
	assert.InDelta(t, 76, int(out.GrayAt(20, 15).Y), 1)
	assert.InDelta(t, 76, int(out.GrayAt(0, 0).Y), 1)
}

func TestPreprocessKernelOneKeepsEdges(t *testing.T) {
	p := newPrimitives(t)

	src := image.NewRGBA(image.Rect(0, 0, 20, 20))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(10, 0, 20, 20), image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	sharp, err := p.Preprocess(src, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), sharp.GrayAt(9, 5).Y)
	assert.Equal(t, uint8(255), sharp.GrayAt(10, 5).Y)

	blurred, err := p.Preprocess(src, 11)
	require.NoError(t, err)
	assert.Greater(t, blurred.GrayAt(9, 5).Y, uint8(0))
	assert.Less(t, blurred.GrayAt(10, 5).Y, uint8(255))
}

func TestAbsDiffAndThreshold(t *testing.T) {
	p := newPrimitives(t)

	a := grayFrame(4, 1, 0)
	b := grayFrame(4, 1, 0)
	copy(a.Pix, []uint8{10, 200, 30, 255})
	copy(b.Pix, []uint8{40, 100, 30, 0})

	diff, err := p.AbsDiff(a, b)
	require.NoError(t, err)
	assert.Equal(t, []uint8{30, 100, 0, 255}, diff.Pix[:4])

	mask, err := p.Threshold(diff, 30)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 0, 255}, mask.Pix[:4])

	_, err = p.AbsDiff(a, grayFrame(2, 2, 0))
	assert.Error(t, err)
}

func TestAbsDiffSubImage(t *testing.T) {
	p := newPrimitives(t)

	a := grayFrame(10, 10, 0)
	fillGray(a, image.Rect(2, 2, 4, 4), 90)
	sub := a.SubImage(image.Rect(2, 2, 6, 6)).(*image.Gray)

	diff, err := p.AbsDiff(sub, grayFrame(4, 4, 0))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 4), diff.Bounds())
	assert.Equal(t, uint8(90), diff.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), diff.GrayAt(3, 3).Y)
}

func compareSquare(t *testing.T, cfg motion.Config, second *image.Gray) motion.Result {
	t.Helper()
	p := newPrimitives(t)
	_, state, err := cfg.Compare(p, motion.State{}, grayFrame(second.Rect.Dx(), second.Rect.Dy(), 0))
	require.NoError(t, err)
	result, _, err := cfg.Compare(p, state, second)
	require.NoError(t, err)
	return result
}

func TestCompareSquareTight(t *testing.T) {
	cfg := motion.Config{Threshold: 25, MinArea: 100, BlurKernel: 11}
	second := grayFrame(100, 100, 0)
	fillGray(second, image.Rect(30, 40, 50, 60), 255)

	result := compareSquare(t, cfg, second)
	require.Len(t, result.Regions, 1)
	assert.Equal(t, image.Rect(30, 40, 50, 60), result.Regions[0].Bounds)
	assert.Equal(t, 361.0, result.Regions[0].Area)
}

func TestCompareDilationGrowsRegion(t *testing.T) {
	cfg := motion.Config{Threshold: 25, DilateIterations: 2, MinArea: 100, BlurKernel: 11}
	second := grayFrame(100, 100, 0)
	fillGray(second, image.Rect(30, 40, 50, 60), 255)

	result := compareSquare(t, cfg, second)
	require.Len(t, result.Regions, 1)
	assert.Equal(t, image.Rect(28, 38, 52, 62), result.Regions[0].Bounds)
	assert.Equal(t, 529.0, result.Regions[0].Area)
}

func TestCompareDilationMergesFragments(t *testing.T) {
	cfg := motion.Config{Threshold: 25, DilateIterations: 2, MinArea: 50, BlurKernel: 11}
	second := grayFrame(100, 100, 0)
	fillGray(second, image.Rect(20, 20, 30, 30), 255)
	fillGray(second, image.Rect(32, 20, 42, 30), 255)

	result := compareSquare(t, cfg, second)
	require.Len(t, result.Regions, 1)
	assert.Equal(t, image.Rect(18, 18, 44, 32), result.Regions[0].Bounds)
}

func TestCompareThresholdIsStrict(t *testing.T) {
	cfg := motion.Config{Threshold: 25, MinArea: 100, BlurKernel: 11}
	p := newPrimitives(t)

	atCutoff := grayFrame(80, 80, 100)
	fillGray(atCutoff, image.Rect(10, 10, 40, 40), 125)
	aboveCutoff := grayFrame(80, 80, 100)
	fillGray(aboveCutoff, image.Rect(10, 10, 40, 40), 126)

	for cur, want := range map[*image.Gray]int{atCutoff: 0, aboveCutoff: 1} {
		_, state, err := cfg.Compare(p, motion.State{}, grayFrame(80, 80, 100))
		require.NoError(t, err)
		result, _, err := cfg.Compare(p, state, cur)
		require.NoError(t, err)
		assert.Len(t, result.Regions, want)
	}
}

func TestCompareSeparateRegions(t *testing.T) {
	cfg := motion.Config{Threshold: 25, MinArea: 100, BlurKernel: 11}
	second := grayFrame(120, 90, 0)
	fillGray(second, image.Rect(5, 5, 35, 35), 255)
	fillGray(second, image.Rect(70, 40, 110, 80), 255)

	result := compareSquare(t, cfg, second)
	require.Len(t, result.Regions, 2)
	var bounds []image.Rectangle
	for _, r := range result.Regions {
		bounds = append(bounds, r.Bounds)
	}
	assert.ElementsMatch(t, []image.Rectangle{image.Rect(5, 5, 35, 35), image.Rect(70, 40, 110, 80)}, bounds)
}
