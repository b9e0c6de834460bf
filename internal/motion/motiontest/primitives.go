// Package motiontest provides a motion.Primitives that runs without OpenCV,
// for tests of the detector and the packages built on it.
package motiontest

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"

	"camwatch/internal/motion"
)

// Primitives implements motion.Primitives with gift filters and plain pixel
// loops. Its contours are the bounding boxes of 8-connected areas, with the
// area OpenCV reports for a filled rectangle: (w-1)*(h-1).
type Primitives struct {
	// DiffErr, when set, is returned by AbsDiff.
	DiffErr error
}

var _ motion.Primitives = (*Primitives)(nil)

// BlurSigma returns the Gaussian sigma OpenCV derives for a kernel size when
// sigma is left at zero.
func BlurSigma(kernel int) float32 {
	if kernel <= 1 {
		return 0
	}
	return float32(0.3*((float64(kernel)-1)*0.5-1) + 0.8)
}

// Preprocess implements motion.Primitives.
func (p *Primitives) Preprocess(src image.Image, kernel int) (*image.Gray, error) {
	filters := []gift.Filter{gift.Grayscale()}
	if sigma := BlurSigma(kernel); sigma > 0 {
		filters = append(filters, gift.GaussianBlur(sigma))
	}

	g := gift.New(filters...)
	dst := image.NewGray(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}

// AbsDiff implements motion.Primitives.
func (p *Primitives) AbsDiff(a, b *image.Gray) (*image.Gray, error) {
	if p.DiffErr != nil {
		return nil, p.DiffErr
	}
	if a.Rect.Size() != b.Rect.Size() {
		return nil, fmt.Errorf("size mismatch: %v vs %v", a.Rect.Size(), b.Rect.Size())
	}

	w, h := a.Rect.Dx(), a.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			va := a.GrayAt(a.Rect.Min.X+x, a.Rect.Min.Y+y).Y
			vb := b.GrayAt(b.Rect.Min.X+x, b.Rect.Min.Y+y).Y
			if va > vb {
				out.Pix[y*out.Stride+x] = va - vb
			} else {
				out.Pix[y*out.Stride+x] = vb - va
			}
		}
	}
	return out, nil
}

// Threshold implements motion.Primitives.
func (p *Primitives) Threshold(src *image.Gray, cutoff int) (*image.Gray, error) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if int(src.GrayAt(src.Rect.Min.X+x, src.Rect.Min.Y+y).Y) > cutoff {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, nil
}

// Dilate implements motion.Primitives.
func (p *Primitives) Dilate(mask *image.Gray, iterations int) (*image.Gray, error) {
	filters := make([]gift.Filter, iterations)
	for i := range filters {
		filters[i] = gift.Maximum(3, false)
	}

	g := gift.New(filters...)
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)
	return dst, nil
}

// ExternalContours implements motion.Primitives. Areas are reported in
// raster order of their first pixel.
func (p *Primitives) ExternalContours(mask *image.Gray) ([]motion.Contour, error) {
	b := mask.Bounds()
	seen := make([]bool, b.Dx()*b.Dy())
	set := func(x, y int) bool {
		return image.Pt(x, y).In(b) && mask.GrayAt(x, y).Y != 0
	}

	var contours []motion.Contour
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := (y-b.Min.Y)*b.Dx() + (x - b.Min.X)
			if seen[i] || !set(x, y) {
				continue
			}
			seen[i] = true

			box := image.Rect(x, y, x+1, y+1)
			stack := []image.Point{{x, y}}
			for len(stack) > 0 {
				pt := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				box = box.Union(image.Rect(pt.X, pt.Y, pt.X+1, pt.Y+1))

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := pt.X+dx, pt.Y+dy
						if !set(nx, ny) {
							continue
						}
						j := (ny-b.Min.Y)*b.Dx() + (nx - b.Min.X)
						if !seen[j] {
							seen[j] = true
							stack = append(stack, image.Pt(nx, ny))
						}
					}
				}
			}

			contours = append(contours, motion.Contour{
				Bounds: box,
				Area:   float64((box.Dx() - 1) * (box.Dy() - 1)),
			})
		}
	}
	return contours, nil
}
