package recorder

import (
	"context"
	"log"
	"time"

	"camwatch/internal/database"
	"camwatch/internal/pipeline"
	"camwatch/internal/timeutil"
)

// EventStore persists motion events.
type EventStore interface {
	SaveMotionEvent(event *database.MotionEventRecord) error
}

// MotionLog stores a motion event for every frame result with motion,
// attributed to the file being recorded at the time.
type MotionLog struct {
	store     EventStore
	recording func() string
}

// NewMotionLog creates a motion log. recording returns the id of the current
// recording, typically Recorder.RecordingID.
func NewMotionLog(store EventStore, recording func() string) *MotionLog {
	return &MotionLog{store: store, recording: recording}
}

// OnFrameResult implements pipeline.FrameResultHandler.
func (l *MotionLog) OnFrameResult(result *pipeline.FrameResult) {
	if !result.HasMotion() {
		return
	}
	id := l.recording()
	if id == "" {
		return
	}

	boxes := make([]database.BoundingBoxRecord, 0, len(result.Regions))
	for _, r := range result.Regions {
		boxes = append(boxes, database.BoundingBoxRecord{
			X:      r.X(),
			Y:      r.Y(),
			Width:  r.Width(),
			Height: r.Height(),
			Area:   r.Area,
		})
	}

	event := &database.MotionEventRecord{
		RecordingID:   id,
		FrameSeq:      result.Seq,
		Timestamp:     result.Timestamp,
		BoundingBoxes: boxes,
	}
	if err := l.store.SaveMotionEvent(event); err != nil {
		log.Printf("[Recorder] Warning: failed to store motion event for frame %d: %v", result.Seq, err)
	}
}

var _ pipeline.FrameResultHandler = (*MotionLog)(nil)

// EventPruner deletes motion events older than a cutoff.
type EventPruner interface {
	DeleteOldMotionEvents(before time.Time) (int64, error)
}

// PruneEvents deletes events older than retention once immediately and then
// every interval until ctx is done.
func PruneEvents(ctx context.Context, pruner EventPruner, retention, interval time.Duration, clock timeutil.Clock) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	prune := func() {
		n, err := pruner.DeleteOldMotionEvents(clock.Now().Add(-retention))
		if err != nil {
			log.Printf("[Recorder] Failed to prune motion events: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[Recorder] Pruned %d motion events older than %s", n, retention)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
