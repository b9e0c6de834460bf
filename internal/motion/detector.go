// Package motion detects regions that changed between consecutive frames.
package motion

import (
	"fmt"
	"image"
	"sync"
)

// Region is the bounding box of one moving area and the contour area that
// produced it.
type Region struct {
	Bounds image.Rectangle `json:"bounds"`
	Area   float64         `json:"area"`
}

// X returns the left edge of the region.
func (r Region) X() int { return r.Bounds.Min.X }

// Y returns the top edge of the region.
func (r Region) Y() int { return r.Bounds.Min.Y }

// Width returns the region width in pixels.
func (r Region) Width() int { return r.Bounds.Dx() }

// Height returns the region height in pixels.
func (r Region) Height() int { return r.Bounds.Dy() }

// State carries the previous preprocessed frame between comparisons.
type State struct {
	prev *image.Gray
}

// Empty reports whether no frame has been stored yet.
func (s State) Empty() bool {
	return s.prev == nil
}

// Frame returns the stored frame, or nil.
func (s State) Frame() *image.Gray {
	return s.prev
}

// Result is the outcome of comparing one frame against the stored state.
type Result struct {
	Regions []Region
	// Bootstrap is set when there was no comparable previous frame; the
	// frame was only stored.
	Bootstrap bool
	// Difference and Mask are the intermediate stages, nil on bootstrap.
	Difference *image.Gray
	Mask       *image.Gray
}

// Compare diffs cur against the frame held in state and returns the motion
// regions together with the state to use for the next frame. The returned
// state holds cur unless an image operation failed, in which case the input
// state is returned unchanged. A state whose frame has different dimensions
// is treated as empty.
func (c Config) Compare(p Primitives, state State, cur *image.Gray) (Result, State, error) {
	next := State{prev: cur}

	prev := state.prev
	if prev == nil || prev.Rect.Size() != cur.Rect.Size() {
		return Result{Bootstrap: true}, next, nil
	}

	diff, err := p.AbsDiff(prev, cur)
	if err != nil {
		return Result{}, state, fmt.Errorf("failed to diff frames: %w", err)
	}
	mask, err := p.Threshold(diff, c.Threshold)
	if err != nil {
		return Result{}, state, fmt.Errorf("failed to threshold difference: %w", err)
	}
	if c.DilateIterations > 0 {
		if mask, err = p.Dilate(mask, c.DilateIterations); err != nil {
			return Result{}, state, fmt.Errorf("failed to dilate mask: %w", err)
		}
	}
	contours, err := p.ExternalContours(mask)
	if err != nil {
		return Result{}, state, fmt.Errorf("failed to find contours: %w", err)
	}

	return Result{
		Regions:    c.Regions(contours),
		Difference: diff,
		Mask:       mask,
	}, next, nil
}

// Regions applies the area filter and converts the surviving contours to
// regions, preserving their order.
func (c Config) Regions(contours []Contour) []Region {
	var regions []Region
	for _, contour := range contours {
		if !c.Keep(contour.Area) {
			continue
		}
		regions = append(regions, Region{Bounds: contour.Bounds, Area: contour.Area})
	}
	return regions
}

// Detector owns the comparison state for a single frame stream. Detect must
// be called with frames in capture order.
type Detector struct {
	cfg   Config
	prims Primitives

	mu    sync.Mutex
	state State
}

// NewDetector creates a detector with the given configuration, running its
// image operations on prims.
func NewDetector(cfg Config, prims Primitives) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid motion config: %w", err)
	}
	if prims == nil {
		return nil, fmt.Errorf("image primitives are required")
	}
	return &Detector{cfg: cfg, prims: prims}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Preprocess converts a captured frame for Detect.
func (d *Detector) Preprocess(src image.Image) (*image.Gray, error) {
	gray, err := d.prims.Preprocess(src, d.cfg.BlurKernel)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess frame: %w", err)
	}
	return gray, nil
}

// Detect compares frame with the previous one and stores it for the next call.
func (d *Detector) Detect(frame *image.Gray) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, next, err := d.cfg.Compare(d.prims, d.state, frame)
	d.state = next
	return result, err
}
