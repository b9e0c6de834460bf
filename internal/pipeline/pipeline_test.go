package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camwatch/internal/camera"
	"camwatch/internal/motion"
	"camwatch/internal/motion/motiontest"
)

type fakeDevice struct {
	frames   []*image.RGBA
	next     int
	readErr  error
	closeErr error
	closed   int
}

func (d *fakeDevice) SetResolution(camera.Resolution) error { return nil }
func (d *fakeDevice) Resolution() camera.Resolution         { return camera.DefaultResolution }
func (d *fakeDevice) FrameRate() float64                    { return 20 }

func (d *fakeDevice) ReadFrame() (camera.Frame, error) {
	if d.next >= len(d.frames) {
		if d.readErr != nil {
			return camera.Frame{}, d.readErr
		}
		return camera.Frame{}, camera.ErrEndOfStream
	}
	img := d.frames[d.next]
	d.next++
	return camera.Frame{Seq: uint64(d.next), Timestamp: time.Unix(int64(d.next), 0), Image: img}, nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return d.closeErr
}

type fakeWriter struct {
	frames   []camera.Frame
	writeErr error
	closeErr error
	closed   int
}

func (w *fakeWriter) Write(f camera.Frame) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return w.closeErr
}

type fakeDisplay struct {
	shown   []Stage
	showErr error
	closed  int
}

func (d *fakeDisplay) Show(stage Stage, img image.Image) error {
	d.shown = append(d.shown, stage)
	return d.showErr
}

func (d *fakeDisplay) Close() error {
	d.closed++
	return nil
}

type pollCanceller struct {
	polls  int
	stopAt int
}

func (c *pollCanceller) Cancelled() bool {
	c.polls++
	return c.polls == c.stopAt
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func withSquare(w, h int, r image.Rectangle) *image.RGBA {
	img := solid(w, h, color.RGBA{0, 0, 0, 255})
	draw.Draw(img, r, image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)
	return img
}

func newDetector(t *testing.T) *motion.Detector {
	t.Helper()
	return newDetectorWith(t, &motiontest.Primitives{})
}

func newDetectorWith(t *testing.T, prims motion.Primitives) *motion.Detector {
	t.Helper()
	cfg := motion.DefaultConfig()
	cfg.MinArea = 500
	d, err := motion.NewDetector(cfg, prims)
	require.NoError(t, err)
	return d
}

func TestRunRecordsAndPublishes(t *testing.T) {
	t.Parallel()

	black := solid(160, 120, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{
		black,
		black,
		withSquare(160, 120, image.Rect(40, 30, 100, 90)),
	}}
	writer := &fakeWriter{}
	display := &fakeDisplay{}
	bus := NewEventBus()

	var results []*FrameResult
	bus.Subscribe(HandlerFunc(func(r *FrameResult) { results = append(results, r) }))

	p := New(dev, newDetector(t), writer, Options{Display: display, Bus: bus})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Frames: 3, Written: 2, MotionFrames: 1, Regions: 1}, stats)
	assert.Equal(t, stats, p.Stats())
	assert.False(t, p.Running())

	// The bootstrap frame is neither written nor displayed.
	require.Len(t, writer.frames, 2)
	assert.Equal(t, uint64(2), writer.frames[0].Seq)
	assert.Equal(t, uint64(3), writer.frames[1].Seq)
	assert.Len(t, display.shown, 8)
	assert.Equal(t, Stages(), display.shown[:4])

	require.Len(t, results, 2)
	assert.False(t, results[0].HasMotion())
	assert.True(t, results[1].HasMotion())
	assert.Equal(t, 160, results[1].Width)
	assert.Same(t, writer.frames[1].Image, results[1].Annotated)

	// The written frame carries a green box; the captured frame is untouched.
	box := results[1].Regions[0].Bounds
	assert.Equal(t, boxColor, writer.frames[1].Image.RGBAAt(box.Min.X, box.Min.Y+box.Dy()/2))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dev.frames[2].RGBAAt(box.Min.X, box.Min.Y+box.Dy()/2))

	assert.Equal(t, 1, dev.closed)
	assert.Equal(t, 1, writer.closed)
	assert.Equal(t, 1, display.closed)
}

func TestRunWithoutDisplay(t *testing.T) {
	t.Parallel()

	black := solid(32, 32, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{black, black, black}}
	writer := &fakeWriter{}

	stats, err := New(dev, newDetector(t), writer, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Written)
	assert.Zero(t, stats.MotionFrames)
}

func TestRunStopsOnCanceller(t *testing.T) {
	t.Parallel()

	black := solid(32, 32, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{black, black, black, black, black}}
	writer := &fakeWriter{}

	cancel := &pollCanceller{stopAt: 3}

	stats, err := New(dev, newDetector(t), writer, Options{Canceller: cancel}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Frames)
	assert.Len(t, writer.frames, 2)
	assert.Equal(t, 1, dev.closed)
}

func TestRunStopsOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := &fakeDevice{frames: []*image.RGBA{solid(8, 8, color.RGBA{})}}
	writer := &fakeWriter{}
	stats, err := New(dev, newDetector(t), writer, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Frames)
	assert.Equal(t, 1, dev.closed)
	assert.Equal(t, 1, writer.closed)
}

func TestRunReleasesOnError(t *testing.T) {
	t.Parallel()

	readFail := errors.New("usb unplugged")
	closeFail := errors.New("close failed")
	dev := &fakeDevice{readErr: readFail, closeErr: closeFail}
	writer := &fakeWriter{}
	display := &fakeDisplay{}

	_, err := New(dev, newDetector(t), writer, Options{Display: display}).Run(context.Background())
	assert.ErrorIs(t, err, readFail)
	assert.ErrorIs(t, err, closeFail)
	assert.Equal(t, 1, dev.closed)
	assert.Equal(t, 1, writer.closed)
	assert.Equal(t, 1, display.closed)
}

func TestRunWriteFailure(t *testing.T) {
	t.Parallel()

	black := solid(16, 16, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{black, black}}
	diskFull := errors.New("disk full")
	writer := &fakeWriter{writeErr: diskFull}

	stats, err := New(dev, newDetector(t), writer, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, diskFull)
	assert.Zero(t, stats.Written)
	assert.Equal(t, 1, writer.closed)
}

func TestRunDetectionFailure(t *testing.T) {
	t.Parallel()

	black := solid(16, 16, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{black, black, black}}
	writer := &fakeWriter{}
	diffFail := errors.New("diff failed")

	stats, err := New(dev, newDetectorWith(t, &motiontest.Primitives{DiffErr: diffFail}), writer, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, diffFail)
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Empty(t, writer.frames)
	assert.Equal(t, 1, dev.closed)
	assert.Equal(t, 1, writer.closed)
}

func TestRunDisplayFailureKeepsRecording(t *testing.T) {
	t.Parallel()

	black := solid(16, 16, color.RGBA{0, 0, 0, 255})
	dev := &fakeDevice{frames: []*image.RGBA{black, black, black}}
	writer := &fakeWriter{}
	display := &fakeDisplay{showErr: errors.New("no window")}

	stats, err := New(dev, newDetector(t), writer, Options{Display: display}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Written)
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, stage := range Stages() {
		got, err := ParseStage(string(stage))
		require.NoError(t, err)
		assert.Equal(t, stage, got)
	}
	_, err := ParseStage("colored")
	assert.Error(t, err)
}
