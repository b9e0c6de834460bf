package opencv

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"

	"camwatch/internal/motion"
)

// Primitives runs the motion comparison steps on OpenCV.
type Primitives struct {
	kernel gocv.Mat
}

var _ motion.Primitives = (*Primitives)(nil)

// NewPrimitives allocates the 3x3 dilation kernel. Close releases it.
func NewPrimitives() *Primitives {
	return &Primitives{kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))}
}

// Close releases the native buffers.
func (p *Primitives) Close() error {
	return p.kernel.Close()
}

// Preprocess converts src to grayscale and applies a kernel x kernel Gaussian
// blur with the sigma OpenCV derives from the kernel size.
func (p *Primitives) Preprocess(src image.Image, kernel int) (*image.Gray, error) {
	color, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer color.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)

	if kernel > 1 {
		gocv.GaussianBlur(gray, &gray, image.Pt(kernel, kernel), 0, 0, gocv.BorderDefault)
	}
	return matToGray(gray)
}

// AbsDiff implements motion.Primitives.
func (p *Primitives) AbsDiff(a, b *image.Gray) (*image.Gray, error) {
	if a.Rect.Size() != b.Rect.Size() {
		return nil, fmt.Errorf("size mismatch: %v vs %v", a.Rect.Size(), b.Rect.Size())
	}

	ma, err := grayToMat(a)
	if err != nil {
		return nil, err
	}
	defer ma.Close()
	mb, err := grayToMat(b)
	if err != nil {
		return nil, err
	}
	defer mb.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(ma, mb, &diff)
	return matToGray(diff)
}

// Threshold implements motion.Primitives with a binary threshold.
func (p *Primitives) Threshold(src *image.Gray, cutoff int) (*image.Gray, error) {
	m, err := grayToMat(src)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(m, &mask, float32(cutoff), 255, gocv.ThresholdBinary)
	return matToGray(mask)
}

// Dilate implements motion.Primitives.
func (p *Primitives) Dilate(mask *image.Gray, iterations int) (*image.Gray, error) {
	m, err := grayToMat(mask)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	for i := 0; i < iterations; i++ {
		gocv.Dilate(m, &m, p.kernel)
	}
	return matToGray(m)
}

// ExternalContours implements motion.Primitives. Contours are returned in
// the order OpenCV finds them.
func (p *Primitives) ExternalContours(mask *image.Gray) ([]motion.Contour, error) {
	m, err := grayToMat(mask)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	found := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]motion.Contour, 0, found.Size())
	for i := range found.Size() {
		c := found.At(i)
		contours = append(contours, motion.Contour{
			Bounds: gocv.BoundingRect(c),
			Area:   gocv.ContourArea(c),
		})
	}
	return contours, nil
}

// grayToMat copies g into a single channel Mat. Sub-images are compacted
// first since the Mat shares the pixel layout.
func grayToMat(g *image.Gray) (gocv.Mat, error) {
	if g.Rect.Min != (image.Point{}) || g.Stride != g.Rect.Dx() {
		c := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
		draw.Draw(c, c.Bounds(), g, g.Rect.Min, draw.Src)
		g = c
	}
	m, err := gocv.ImageGrayToMatGray(g)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image: %w", err)
	}
	return m, nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g, nil
}
