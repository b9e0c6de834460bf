package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"camwatch/internal/camera"
	"camwatch/internal/recorder"
)

// VideoWriter encodes frames into a video file.
type VideoWriter struct {
	w *gocv.VideoWriter
}

// NewWriterFactory returns a recorder.WriterFactory producing colour video
// files encoded with fourcc.
func NewWriterFactory(fourcc string) recorder.WriterFactory {
	return func(path string, fps float64, size camera.Resolution) (recorder.FrameWriter, error) {
		w, err := gocv.VideoWriterFile(path, fourcc, fps, size.Width, size.Height, true)
		if err != nil {
			return nil, err
		}
		if !w.IsOpened() {
			w.Close()
			return nil, fmt.Errorf("codec %s cannot write %s", fourcc, path)
		}
		return &VideoWriter{w: w}, nil
	}
}

// Write appends one frame.
func (v *VideoWriter) Write(img *image.RGBA) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()
	return v.w.Write(mat)
}

// Close finalises the file.
func (v *VideoWriter) Close() error {
	return v.w.Close()
}
