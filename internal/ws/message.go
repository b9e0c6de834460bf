package ws

import (
	"time"

	"camwatch/internal/pipeline"
)

// Message types
const (
	TypeMotion = "motion"
	TypeFrame  = "frame"
)

// MotionMessage reports the regions found in one frame
type MotionMessage struct {
	Type        string         `json:"type"` // "motion" or "frame"
	Seq         uint64         `json:"seq"`
	Timestamp   time.Time      `json:"timestamp"`
	FrameWidth  int            `json:"frame_width"`
	FrameHeight int            `json:"frame_height"`
	Regions     []MotionRegion `json:"regions"`
}

// MotionRegion represents a single moving area
type MotionRegion struct {
	BBox []int   `json:"bbox"` // [x, y, w, h] in pixels
	Area float64 `json:"area"` // Contour area in pixels
}

// NewMotionMessage creates a message from a pipeline frame result
func NewMotionMessage(result *pipeline.FrameResult) *MotionMessage {
	msg := &MotionMessage{
		Type:        TypeFrame,
		Seq:         result.Seq,
		Timestamp:   result.Timestamp,
		FrameWidth:  result.Width,
		FrameHeight: result.Height,
		Regions:     make([]MotionRegion, 0, len(result.Regions)),
	}
	if result.HasMotion() {
		msg.Type = TypeMotion
	}
	for _, r := range result.Regions {
		msg.Regions = append(msg.Regions, MotionRegion{
			BBox: []int{r.X(), r.Y(), r.Width(), r.Height()},
			Area: r.Area,
		})
	}
	return msg
}
