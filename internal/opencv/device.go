// Package opencv binds the capture, encoding and window concerns to OpenCV
// through gocv.
package opencv

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"

	"camwatch/internal/camera"
)

// Device is a webcam opened through OpenCV.
type Device struct {
	index int
	cap   *gocv.VideoCapture
	mat   gocv.Mat
	seq   uint64
}

// OpenDevice opens the capture device with the given index.
func OpenDevice(index int) (camera.Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture device %d is not available", index)
	}
	return &Device{index: index, cap: vc, mat: gocv.NewMat()}, nil
}

// SetResolution asks the driver for a capture size.
func (d *Device) SetResolution(r camera.Resolution) error {
	d.cap.Set(gocv.VideoCaptureFrameWidth, float64(r.Width))
	d.cap.Set(gocv.VideoCaptureFrameHeight, float64(r.Height))
	return nil
}

// Resolution returns the size the driver reports.
func (d *Device) Resolution() camera.Resolution {
	return camera.Resolution{
		Width:  int(d.cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(d.cap.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// FrameRate returns the reported capture rate, 0 when the driver has none.
func (d *Device) FrameRate() float64 {
	fps := d.cap.Get(gocv.VideoCaptureFPS)
	if fps < 0 {
		return 0
	}
	return fps
}

// ReadFrame grabs the next frame. A failed grab ends the stream.
func (d *Device) ReadFrame() (camera.Frame, error) {
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return camera.Frame{}, camera.ErrEndOfStream
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return camera.Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}

	d.seq++
	return camera.Frame{Seq: d.seq, Timestamp: time.Now(), Image: toRGBA(img)}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	if err := d.mat.Close(); err != nil {
		return err
	}
	return d.cap.Close()
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

var _ camera.Opener = OpenDevice
