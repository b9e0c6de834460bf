package camera

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// DefaultResolution is used when the operator does not pick one.
var DefaultResolution = Resolution{Width: 1080, Height: 720}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Validate checks that both dimensions are positive.
func (r Resolution) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid resolution %s: dimensions must be positive", r)
	}
	return nil
}

// ParseResolution parses a "WIDTHxHEIGHT" string such as "1280x720".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution height %q: %w", h, err)
	}

	r := Resolution{Width: width, Height: height}
	if err := r.Validate(); err != nil {
		return Resolution{}, err
	}
	return r, nil
}

// Negotiate requests req from the device and returns the resolution the
// device actually granted. Callers must size everything downstream from the
// returned value.
func Negotiate(dev Device, req Resolution) (Resolution, error) {
	if err := req.Validate(); err != nil {
		return Resolution{}, err
	}
	if err := dev.SetResolution(req); err != nil {
		return Resolution{}, fmt.Errorf("failed to set resolution %s: %w", req, err)
	}

	granted := dev.Resolution()
	if err := granted.Validate(); err != nil {
		return Resolution{}, fmt.Errorf("device reported unusable resolution: %w", err)
	}
	if granted != req {
		log.Printf("[Camera] Requested %s, device granted %s", req, granted)
	}
	return granted, nil
}
