package opencv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"camwatch/internal/pipeline"
)

const escKey = 27

var windowTitles = map[pipeline.Stage]string{
	pipeline.StageFiltered:   "Filtered",
	pipeline.StageDifference: "Difference",
	pipeline.StageThreshold:  "Threshold",
	pipeline.StageAnnotated:  "Annotated",
}

// Windows shows every stage in its own desktop window. It must be used from
// the goroutine that created it. Pressing Esc in any window cancels the run.
type Windows struct {
	windows map[pipeline.Stage]*gocv.Window
	events  *gocv.Window
}

// NewWindows opens one window per stage.
func NewWindows() *Windows {
	w := &Windows{windows: make(map[pipeline.Stage]*gocv.Window)}
	for _, stage := range pipeline.Stages() {
		w.windows[stage] = gocv.NewWindow(windowTitles[stage])
	}
	w.events = w.windows[pipeline.StageAnnotated]
	return w
}

// Show implements pipeline.Display.
func (w *Windows) Show(stage pipeline.Stage, img image.Image) error {
	win, ok := w.windows[stage]
	if !ok {
		return fmt.Errorf("no window for stage %q", stage)
	}
	if img == nil {
		return nil
	}

	var mat gocv.Mat
	var err error
	switch src := img.(type) {
	case *image.Gray:
		mat, err = gocv.ImageGrayToMatGray(src)
	default:
		mat, err = gocv.ImageToMatRGB(img)
	}
	if err != nil {
		return fmt.Errorf("failed to convert %s image: %w", stage, err)
	}
	defer mat.Close()

	win.IMShow(mat)
	return nil
}

// Cancelled implements pipeline.Canceller. It also pumps the window event
// loop, so it must be called once per frame.
func (w *Windows) Cancelled() bool {
	return w.events.WaitKey(1) == escKey
}

// Close destroys all windows.
func (w *Windows) Close() error {
	var errs []error
	for stage, win := range w.windows {
		if err := win.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s window: %w", stage, err))
		}
	}
	return errors.Join(errs...)
}

var (
	_ pipeline.Display   = (*Windows)(nil)
	_ pipeline.Canceller = (*Windows)(nil)
)
