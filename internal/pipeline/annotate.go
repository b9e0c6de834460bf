package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"camwatch/internal/motion"
)

// MotionLabel is drawn in the top-left corner of frames containing motion.
const MotionLabel = "Motion Detected"

var (
	boxColor       = color.RGBA{0, 255, 0, 255}
	labelColor     = color.RGBA{255, 0, 0, 255}
	labelBgColor   = color.RGBA{0, 0, 0, 180}
	boxThickness   = 3
	labelOrigin    = image.Pt(10, 10)
	labelCharWidth = 7
)

// Annotate returns a copy of src with a box around every region and a label
// when any region is present. src is not modified.
func Annotate(src *image.RGBA, regions []motion.Region) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	for _, r := range regions {
		drawBox(dst, r.Bounds, boxColor, boxThickness)
	}
	if len(regions) > 0 {
		drawLabel(dst, b.Min.Add(labelOrigin), MotionLabel, labelColor)
	}
	return dst
}

// drawBox draws the outline of r, growing inwards by thickness pixels.
func drawBox(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	u := image.NewUniform(c)

	for t := 0; t < thickness && t*2 < min(r.Dx(), r.Dy()); t++ {
		x0, y0, x1, y1 := r.Min.X+t, r.Min.Y+t, r.Max.X-t, r.Max.Y-t
		// Top, bottom, left, right
		draw.Draw(img, image.Rect(x0, y0, x1, y0+1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x0, y1-1, x1, y1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x0, y0, x0+1, y1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x1-1, y0, x1, y1), u, image.Point{}, draw.Src)
	}
}

// drawLabel draws text on a dark background with its top-left corner at p
func drawLabel(img *image.RGBA, p image.Point, label string, c color.RGBA) {
	bg := image.Rect(p.X-2, p.Y-2, p.X+len(label)*labelCharWidth+2, p.Y+12)
	draw.Draw(img, bg.Intersect(img.Bounds()), image.NewUniform(labelBgColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(p.X), Y: fixed.I(p.Y + 10)},
	}
	d.DrawString(label)
}
