package motion

import "fmt"

// Defaults tuned for a VGA-scale indoor scene.
const (
	DefaultThreshold        = 25
	DefaultDilateIterations = 2
	DefaultMinArea          = 5000
	DefaultBlurKernel       = 11
)

// Config holds the tunable constants of the detector.
type Config struct {
	// Threshold is the intensity difference a pixel must exceed to count as
	// changed (0-255).
	Threshold int `json:"threshold"`
	// DilateIterations is the number of 3x3 dilation passes over the change mask.
	DilateIterations int `json:"dilate_iterations"`
	// MinArea is the contour area a region must exceed to be reported.
	MinArea float64 `json:"min_area"`
	// BlurKernel is the odd Gaussian kernel size used when preprocessing.
	BlurKernel int `json:"blur_kernel"`
}

// DefaultConfig returns the stock detector configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:        DefaultThreshold,
		DilateIterations: DefaultDilateIterations,
		MinArea:          DefaultMinArea,
		BlurKernel:       DefaultBlurKernel,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", c.Threshold)
	}
	if c.DilateIterations < 0 {
		return fmt.Errorf("dilate iterations must be non-negative, got %d", c.DilateIterations)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("min area must be non-negative, got %f", c.MinArea)
	}
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	return nil
}

// Keep reports whether a contour of the given area survives the area filter.
// Areas equal to MinArea are discarded, unlike the common
// "if area < min: continue" loop, which keeps them.
func (c Config) Keep(area float64) bool {
	return area > c.MinArea
}
