// Package recorder writes annotated frames to rotating output files.
package recorder

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"camwatch/internal/camera"
	"camwatch/internal/database"
	"camwatch/internal/session"
	"camwatch/internal/timeutil"
)

// FrameWriter encodes frames into a single output file.
type FrameWriter interface {
	Write(img *image.RGBA) error
	Close() error
}

// WriterFactory creates the file at path for frames of the given size.
type WriterFactory func(path string, fps float64, size camera.Resolution) (FrameWriter, error)

// Catalog keeps track of the files the recorder produced.
type Catalog interface {
	SaveRecording(rec *database.RecordingRecord) error
	FinishRecording(id string, endedAt time.Time, frames uint64) error
}

// Config configures a Recorder.
type Config struct {
	Sessions *session.Manager
	Open     WriterFactory
	Size     camera.Resolution
	FPS      float64
	// Catalog is optional.
	Catalog Catalog
	Clock   timeutil.Clock
}

// Recorder writes frames to <base>/<date>/output_<n>.<ext>, switching to a
// new file when the session date changes.
type Recorder struct {
	cfg Config

	mu     sync.Mutex
	writer FrameWriter
	file   session.OutputFile
	rec    *database.RecordingRecord
	frames uint64
	closed bool
}

// New creates a recorder and opens its first output file.
func New(cfg Config) (*Recorder, error) {
	if cfg.Sessions == nil || cfg.Open == nil {
		return nil, errors.New("recorder requires a session manager and a writer factory")
	}
	if err := cfg.Size.Validate(); err != nil {
		return nil, err
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", cfg.FPS)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	r := &Recorder{cfg: cfg}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the file frames are being written to.
func (r *Recorder) Current() session.OutputFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file
}

// BaseDir returns the directory the per-day output directories live in.
func (r *Recorder) BaseDir() string {
	return r.cfg.Sessions.BaseDir()
}

// RecordingID returns the catalog id of the current file.
func (r *Recorder) RecordingID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return ""
	}
	return r.rec.ID
}

// Write appends a frame, rotating first if the date has changed.
func (r *Recorder) Write(frame camera.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("recorder is closed")
	}

	s, err := r.cfg.Sessions.Current()
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}
	if s.Date != r.file.Date {
		if err := r.finish(); err != nil {
			log.Printf("[Recorder] Failed to close %s: %v", r.file.Path, err)
		}
		if err := r.open(); err != nil {
			return err
		}
	}

	if err := r.writer.Write(frame.Image); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.file.Path, err)
	}
	r.frames++
	return nil
}

// Close finishes the current file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.finish()
}

// open acquires the next output path and creates its writer.
func (r *Recorder) open() error {
	file, err := r.cfg.Sessions.Next()
	if err != nil {
		return fmt.Errorf("failed to acquire output file: %w", err)
	}

	w, err := r.cfg.Open(file.Path, r.cfg.FPS, r.cfg.Size)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file.Path, err)
	}

	r.writer = w
	r.file = file
	r.frames = 0
	r.rec = &database.RecordingRecord{
		ID:        uuid.New().String(),
		Date:      file.Date,
		Sequence:  file.Count,
		Path:      file.Path,
		Width:     r.cfg.Size.Width,
		Height:    r.cfg.Size.Height,
		FPS:       r.cfg.FPS,
		StartedAt: r.cfg.Clock.Now(),
	}

	if r.cfg.Catalog != nil {
		if err := r.cfg.Catalog.SaveRecording(r.rec); err != nil {
			log.Printf("[Recorder] Warning: failed to catalog %s: %v", file.Path, err)
		}
	}
	log.Printf("[Recorder] Writing to %s (%s @ %.1f fps)", file.Path, r.cfg.Size, r.cfg.FPS)
	return nil
}

// finish closes the writer and records the final frame count.
func (r *Recorder) finish() error {
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil

	if r.cfg.Catalog != nil && r.rec != nil {
		if cerr := r.cfg.Catalog.FinishRecording(r.rec.ID, r.cfg.Clock.Now(), r.frames); cerr != nil {
			log.Printf("[Recorder] Warning: failed to update catalog for %s: %v", r.file.Path, cerr)
		}
	}
	log.Printf("[Recorder] Closed %s after %d frames", r.file.Path, r.frames)
	return err
}
