package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "camwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

var base = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func TestRecordingLifecycle(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	rec := &RecordingRecord{
		Date:      "2024-03-09",
		Sequence:  4,
		Path:      "/srv/camwatch/2024-03-09/output_4.avi",
		Width:     1280,
		Height:    720,
		FPS:       20,
		StartedAt: base,
	}
	require.NoError(t, db.SaveRecording(rec))
	require.NotEmpty(t, rec.ID)

	got, err := db.GetRecording(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, 4, got.Sequence)
	assert.True(t, base.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt)

	require.NoError(t, db.FinishRecording(rec.ID, base.Add(time.Hour), 72000))
	got, err = db.GetRecording(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, base.Add(time.Hour).Equal(*got.EndedAt))
	assert.Equal(t, uint64(72000), got.Frames)

	assert.Error(t, db.FinishRecording("missing", base, 1))

	missing, err := db.GetRecording("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListRecordings(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	for _, r := range []RecordingRecord{
		{Date: "2024-03-08", Sequence: 1},
		{Date: "2024-03-09", Sequence: 1},
		{Date: "2024-03-09", Sequence: 2},
	} {
		r := r
		r.Path, r.Width, r.Height, r.FPS, r.StartedAt = "x", 1, 1, 1, base
		require.NoError(t, db.SaveRecording(&r))
	}

	all, err := db.ListRecordings("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-09", all[0].Date)
	assert.Equal(t, 2, all[0].Sequence)
	assert.Equal(t, "2024-03-08", all[2].Date)

	day, err := db.ListRecordings("2024-03-08", 0)
	require.NoError(t, err)
	assert.Len(t, day, 1)

	limited, err := db.ListRecordings("", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMotionEvents(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	rec := &RecordingRecord{Date: "2024-03-09", Sequence: 1, Path: "p", Width: 10, Height: 10, FPS: 20, StartedAt: base}
	require.NoError(t, db.SaveRecording(rec))

	for i := 0; i < 3; i++ {
		require.NoError(t, db.SaveMotionEvent(&MotionEventRecord{
			RecordingID: rec.ID,
			FrameSeq:    uint64(10 + i),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			BoundingBoxes: []BoundingBoxRecord{
				{X: i, Y: 2, Width: 30, Height: 40, Area: 1131},
			},
		}))
	}

	events, err := db.ListMotionEvents(rec.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(12), events[0].FrameSeq)
	assert.Equal(t, 2, events[0].BoundingBoxes[0].X)
	assert.Equal(t, 1131.0, events[0].BoundingBoxes[0].Area)

	got, err := db.GetRecording(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.MotionFrames)

	since := base.Add(time.Minute)
	recent, err := db.ListMotionEvents("", &since, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	deleted, err := db.DeleteOldMotionEvents(base.Add(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	left, err := db.ListMotionEvents(rec.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, uint64(12), left[0].FrameSeq)
}

func TestMotionEventRequiresRecording(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	err := db.SaveMotionEvent(&MotionEventRecord{RecordingID: "nope", Timestamp: base})
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	assert.NoError(t, db.Migrate())
	assert.NoError(t, db.Ping())
}
