package motion

import "image"

// Contour is the outer boundary of one connected area of a change mask,
// reduced to what the area filter and the regions need.
type Contour struct {
	Bounds image.Rectangle
	Area   float64
}

// Primitives are the image operations a comparison is built from. The
// production implementation lives in internal/opencv.
type Primitives interface {
	// Preprocess converts a frame to grayscale and smooths it with a
	// kernel x kernel Gaussian blur. A kernel of 1 skips the blur.
	Preprocess(src image.Image, kernel int) (*image.Gray, error)
	// AbsDiff returns the per-pixel absolute difference of two frames of
	// equal size.
	AbsDiff(a, b *image.Gray) (*image.Gray, error)
	// Threshold sets pixels strictly above cutoff to 255 and the rest to 0.
	Threshold(src *image.Gray, cutoff int) (*image.Gray, error)
	// Dilate grows the set pixels of a mask with a 3x3 square kernel.
	Dilate(mask *image.Gray, iterations int) (*image.Gray, error)
	// ExternalContours returns the outer contours of a binary mask.
	ExternalContours(mask *image.Gray) ([]Contour, error)
}
