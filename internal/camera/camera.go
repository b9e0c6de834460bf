// Package camera defines the capture device contract and resolution
// negotiation.
package camera

import (
	"errors"
	"image"
	"time"
)

// ErrEndOfStream is returned by ReadFrame when the device stops delivering
// frames.
var ErrEndOfStream = errors.New("camera: end of stream")

// Frame is one captured image. It belongs to the loop iteration that read it.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     *image.RGBA
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Image.Bounds().Dy() }

// Device is a live video source.
type Device interface {
	// SetResolution asks the device for a capture size. The device may
	// grant a different one; read it back with Resolution.
	SetResolution(r Resolution) error
	// Resolution returns the size frames are currently delivered at.
	Resolution() Resolution
	// FrameRate returns the reported capture rate, or 0 when unknown.
	FrameRate() float64
	// ReadFrame blocks for the next frame. It returns ErrEndOfStream once
	// the source is exhausted or disconnected.
	ReadFrame() (Frame, error)
	Close() error
}

// Opener opens the capture device with the given index.
type Opener func(index int) (Device, error)
