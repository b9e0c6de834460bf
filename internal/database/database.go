package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Database handles SQLite database operations
type Database struct {
	db *sql.DB
}

// RecordingRecord represents one output file
type RecordingRecord struct {
	ID           string     `json:"id"`
	Date         string     `json:"date"`
	Sequence     int        `json:"sequence"`
	Path         string     `json:"path"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	FPS          float64    `json:"fps"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Frames       uint64     `json:"frames"`
	MotionFrames uint64     `json:"motion_frames"`
}

// MotionEventRecord represents a frame in which motion was detected
type MotionEventRecord struct {
	ID            string              `json:"id"`
	RecordingID   string              `json:"recording_id"`
	FrameSeq      uint64              `json:"frame_seq"`
	Timestamp     time.Time           `json:"timestamp"`
	BoundingBoxes []BoundingBoxRecord `json:"bounding_boxes"`
}

// BoundingBoxRecord represents a bounding box
type BoundingBoxRecord struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Area   float64 `json:"area"`
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable
func (d *Database) Ping() error {
	return d.db.Ping()
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			fps REAL NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			frames INTEGER DEFAULT 0,
			motion_frames INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS motion_events (
			id TEXT PRIMARY KEY,
			recording_id TEXT NOT NULL,
			frame_seq INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			bounding_boxes TEXT,
			FOREIGN KEY (recording_id) REFERENCES recordings(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_date ON recordings(date, sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_events_recording_time ON motion_events(recording_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON motion_events(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Printf("[Database] Migrations completed")
	return nil
}

// SaveRecording saves or updates a recording
func (d *Database) SaveRecording(rec *RecordingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `INSERT INTO recordings
		(id, date, sequence, path, width, height, fps, started_at, ended_at, frames, motion_frames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			ended_at = excluded.ended_at,
			frames = excluded.frames`

	_, err := d.db.Exec(query, rec.ID, rec.Date, rec.Sequence, rec.Path, rec.Width, rec.Height,
		rec.FPS, toUnix(rec.StartedAt), nullableUnix(rec.EndedAt), int64(rec.Frames), int64(rec.MotionFrames))
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

// FinishRecording stores the end time and frame count of a recording
func (d *Database) FinishRecording(id string, endedAt time.Time, frames uint64) error {
	result, err := d.db.Exec("UPDATE recordings SET ended_at = ?, frames = ? WHERE id = ?",
		toUnix(endedAt), int64(frames), id)
	if err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s not found", id)
	}
	return nil
}

const recordingColumns = `id, date, sequence, path, width, height, fps, started_at, ended_at, frames, motion_frames`

// GetRecording retrieves a recording by ID
func (d *Database) GetRecording(id string) (*RecordingRecord, error) {
	row := d.db.QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

// ListRecordings returns recordings, newest first, optionally for one date
func (d *Database) ListRecordings(date string, limit int) ([]*RecordingRecord, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE 1=1`
	args := []interface{}{}

	if date != "" {
		query += " AND date = ?"
		args = append(args, date)
	}

	query += " ORDER BY date DESC, sequence DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*RecordingRecord
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(s scanner) (*RecordingRecord, error) {
	var rec RecordingRecord
	var startedAt int64
	var endedAt sql.NullInt64
	var frames, motionFrames int64

	if err := s.Scan(&rec.ID, &rec.Date, &rec.Sequence, &rec.Path, &rec.Width, &rec.Height,
		&rec.FPS, &startedAt, &endedAt, &frames, &motionFrames); err != nil {
		return nil, err
	}

	rec.StartedAt = fromUnix(startedAt)
	if endedAt.Valid {
		t := fromUnix(endedAt.Int64)
		rec.EndedAt = &t
	}
	rec.Frames = uint64(frames)
	rec.MotionFrames = uint64(motionFrames)
	return &rec, nil
}

// SaveMotionEvent saves a motion event and counts it against its recording
func (d *Database) SaveMotionEvent(event *MotionEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	bboxJSON, err := json.Marshal(event.BoundingBoxes)
	if err != nil {
		return fmt.Errorf("failed to marshal bounding boxes: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO motion_events (id, recording_id, frame_seq, timestamp, bounding_boxes)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, event.ID, event.RecordingID, int64(event.FrameSeq),
		toUnix(event.Timestamp), string(bboxJSON)); err != nil {
		return fmt.Errorf("failed to save motion event: %w", err)
	}

	if _, err := tx.Exec("UPDATE recordings SET motion_frames = motion_frames + 1 WHERE id = ?",
		event.RecordingID); err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit motion event: %w", err)
	}
	return nil
}

// ListMotionEvents returns motion events with optional filtering
func (d *Database) ListMotionEvents(recordingID string, since *time.Time, limit int) ([]*MotionEventRecord, error) {
	query := `SELECT id, recording_id, frame_seq, timestamp, bounding_boxes FROM motion_events WHERE 1=1`
	args := []interface{}{}

	if recordingID != "" {
		query += " AND recording_id = ?"
		args = append(args, recordingID)
	}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, toUnix(*since))
	}

	query += " ORDER BY timestamp DESC, frame_seq DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list motion events: %w", err)
	}
	defer rows.Close()

	var events []*MotionEventRecord
	for rows.Next() {
		var event MotionEventRecord
		var frameSeq, ts int64
		var bboxJSON sql.NullString

		if err := rows.Scan(&event.ID, &event.RecordingID, &frameSeq, &ts, &bboxJSON); err != nil {
			return nil, fmt.Errorf("failed to scan motion event: %w", err)
		}

		event.FrameSeq = uint64(frameSeq)
		event.Timestamp = fromUnix(ts)
		if bboxJSON.Valid && bboxJSON.String != "" {
			if err := json.Unmarshal([]byte(bboxJSON.String), &event.BoundingBoxes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal bounding boxes: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// DeleteOldMotionEvents deletes events older than the specified time
func (d *Database) DeleteOldMotionEvents(before time.Time) (int64, error) {
	result, err := d.db.Exec("DELETE FROM motion_events WHERE timestamp < ?", toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old motion events: %w", err)
	}
	return result.RowsAffected()
}

// Timestamps are stored as Unix milliseconds.
func toUnix(t time.Time) int64 {
	return t.UnixMilli()
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}

func fromUnix(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
