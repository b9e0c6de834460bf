package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"camwatch/internal/database"
)

// ErrNotFound is returned for unknown recordings.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps list responses when no limit is given.
const DefaultListLimit = 100

// RecordingStore is the read side of the recording catalog.
type RecordingStore interface {
	ListRecordings(date string, limit int) ([]*database.RecordingRecord, error)
	GetRecording(id string) (*database.RecordingRecord, error)
	ListMotionEvents(recordingID string, since *time.Time, limit int) ([]*database.MotionEventRecord, error)
}

// RecordingService serves the recording catalog
type RecordingService struct {
	store RecordingStore
}

// NewRecordingService creates a new recording service
func NewRecordingService(store RecordingStore) *RecordingService {
	return &RecordingService{store: store}
}

// List returns recordings, newest first, optionally restricted to one date.
func (s *RecordingService) List(ctx context.Context, date string, limit int) ([]*database.RecordingRecord, error) {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, err)
		}
	}
	recs, err := s.store.ListRecordings(date, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	if recs == nil {
		recs = []*database.RecordingRecord{}
	}
	return recs, nil
}

// Get returns one recording.
func (s *RecordingService) Get(ctx context.Context, id string) (*database.RecordingRecord, error) {
	rec, err := s.store.GetRecording(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Events returns the motion events stored for a recording.
func (s *RecordingService) Events(ctx context.Context, id string, since *time.Time, limit int) ([]*database.MotionEventRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.store.ListMotionEvents(id, since, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list motion events: %w", err)
	}
	if events == nil {
		events = []*database.MotionEventRecord{}
	}
	return events, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
