// Package stream publishes pipeline stages to HTTP clients as MJPEG streams
// and JPEG snapshots.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"

	"camwatch/internal/pipeline"
)

// DefaultQuality is the JPEG quality used for streamed frames.
const DefaultQuality = 80

// MJPEGStream holds the latest encoded frame of one stage
type MJPEGStream struct {
	stage   pipeline.Stage
	quality int
	out     *mjpeg.Stream

	frameMu   sync.RWMutex
	frame     []byte
	frameSeq  uint64
	updatedAt time.Time
}

func newMJPEGStream(stage pipeline.Stage, quality int) *MJPEGStream {
	return &MJPEGStream{
		stage:   stage,
		quality: quality,
		out:     mjpeg.NewStream(),
	}
}

// Update encodes img and pushes it to connected clients
func (s *MJPEGStream) Update(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", s.stage, err)
	}
	frame := buf.Bytes()

	s.frameMu.Lock()
	s.frame = frame
	s.frameSeq++
	s.updatedAt = time.Now()
	s.frameMu.Unlock()

	s.out.UpdateJPEG(frame)
	return nil
}

// GetCurrentFrame returns the latest JPEG, or nil before the first update
func (s *MJPEGStream) GetCurrentFrame() []byte {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame
}

// GetCurrentFrameSeq returns the number of frames pushed so far
func (s *MJPEGStream) GetCurrentFrameSeq() uint64 {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frameSeq
}

// ServeHTTP serves the MJPEG stream to a client
func (s *MJPEGStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("[MJPEGStream] Client connected to %s stream", s.stage)
	s.out.ServeHTTP(w, r)
	log.Printf("[MJPEGStream] Client disconnected from %s stream", s.stage)
}

// MJPEGStreamManager keeps one stream per pipeline stage and acts as a
// pipeline display
type MJPEGStreamManager struct {
	streams map[pipeline.Stage]*MJPEGStream
	mu      sync.RWMutex
	closed  bool
}

// NewMJPEGStreamManager creates a stream for every stage
func NewMJPEGStreamManager(quality int) *MJPEGStreamManager {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	m := &MJPEGStreamManager{streams: make(map[pipeline.Stage]*MJPEGStream)}
	for _, stage := range pipeline.Stages() {
		m.streams[stage] = newMJPEGStream(stage, quality)
	}
	return m
}

// GetStream returns the stream for a stage, or nil
func (m *MJPEGStreamManager) GetStream(stage pipeline.Stage) *MJPEGStream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streams[stage]
}

// Show implements pipeline.Display
func (m *MJPEGStreamManager) Show(stage pipeline.Stage, img image.Image) error {
	if img == nil {
		return nil
	}

	m.mu.RLock()
	closed := m.closed
	s := m.streams[stage]
	m.mu.RUnlock()

	if closed {
		return errors.New("stream manager is closed")
	}
	if s == nil {
		return fmt.Errorf("unknown stage %q", stage)
	}
	return s.Update(img)
}

// Close stops accepting frames. Connected clients keep the last frame.
func (m *MJPEGStreamManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ServeHTTP serves /stream/{stage}
func (m *MJPEGStreamManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := m.lookup(w, r)
	if !ok {
		return
	}
	s.ServeHTTP(w, r)
}

func (m *MJPEGStreamManager) lookup(w http.ResponseWriter, r *http.Request) (*MJPEGStream, bool) {
	stage, err := pipeline.ParseStage(r.PathValue("stage"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return m.GetStream(stage), true
}

// SnapshotHandler serves single frame snapshots
type SnapshotHandler struct {
	manager *MJPEGStreamManager
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(manager *MJPEGStreamManager) *SnapshotHandler {
	return &SnapshotHandler{manager: manager}
}

// ServeHTTP serves the latest JPEG of /snapshot/{stage}
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.manager.lookup(w, r)
	if !ok {
		return
	}

	frame := s.GetCurrentFrame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(frame)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}

var _ pipeline.Display = (*MJPEGStreamManager)(nil)
