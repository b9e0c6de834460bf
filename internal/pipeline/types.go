package pipeline

import (
	"fmt"
	"image"
	"time"

	"camwatch/internal/camera"
	"camwatch/internal/motion"
)

// Stage names one of the images produced for each processed frame.
type Stage string

const (
	// StageFiltered is the grayscale, blurred frame
	StageFiltered Stage = "filtered"
	// StageDifference is the absolute difference against the previous frame
	StageDifference Stage = "difference"
	// StageThreshold is the dilated binary change mask
	StageThreshold Stage = "threshold"
	// StageAnnotated is the captured frame with motion boxes drawn on it
	StageAnnotated Stage = "annotated"
)

// Stages lists every display stage in the order they are shown.
func Stages() []Stage {
	return []Stage{StageFiltered, StageDifference, StageThreshold, StageAnnotated}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, stage := range Stages() {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// FrameResult is published on the event bus for every frame that was compared
// against a previous one.
type FrameResult struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Regions   []motion.Region `json:"regions"`
	// Annotated is the frame as written to disk. Handlers must not modify it.
	Annotated *image.RGBA `json:"-"`
}

// HasMotion reports whether any region survived the area filter.
func (r *FrameResult) HasMotion() bool {
	return len(r.Regions) > 0
}

// Stats summarises a pipeline run.
type Stats struct {
	Frames       uint64 `json:"frames"`
	Written      uint64 `json:"written"`
	MotionFrames uint64 `json:"motion_frames"`
	Regions      uint64 `json:"regions"`
}

// Writer persists annotated frames.
type Writer interface {
	Write(frame camera.Frame) error
	Close() error
}

// Display shows intermediate images to the operator. It is optional.
type Display interface {
	Show(stage Stage, img image.Image) error
	Close() error
}

// Canceller is polled once per iteration; returning true stops the run.
type Canceller interface {
	Cancelled() bool
}
