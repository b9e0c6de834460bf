package stream

import (
	"errors"
	"image"

	"camwatch/internal/pipeline"
)

// CompositeDisplay forwards every stage to several displays
type CompositeDisplay struct {
	displays []pipeline.Display
}

// NewCompositeDisplay creates a display that broadcasts to the non-nil displays
func NewCompositeDisplay(displays ...pipeline.Display) *CompositeDisplay {
	c := &CompositeDisplay{}
	for _, d := range displays {
		if d != nil {
			c.displays = append(c.displays, d)
		}
	}
	return c
}

// Len returns the number of wrapped displays
func (c *CompositeDisplay) Len() int {
	return len(c.displays)
}

// Show forwards img to all displays and joins their errors
func (c *CompositeDisplay) Show(stage pipeline.Stage, img image.Image) error {
	var errs []error
	for _, d := range c.displays {
		if err := d.Show(stage, img); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all displays
func (c *CompositeDisplay) Close() error {
	var errs []error
	for _, d := range c.displays {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ pipeline.Display = (*CompositeDisplay)(nil)
