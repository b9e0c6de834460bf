package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camwatch/internal/timeutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestManagerExistingDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "2026-10-19")
	require.NoError(t, os.MkdirAll(dir, 0755))
	touch(t, filepath.Join(dir, "output_1.avi"))
	touch(t, filepath.Join(dir, "output_2.avi"))
	touch(t, filepath.Join(dir, "output_9.avi"))

	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, Session{Date: "2026-10-19", Count: 10}, s)

	out, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, 10, out.Count)
	assert.Equal(t, filepath.Join(dir, "output_10.avi"), out.Path)
}

func TestManagerCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)

	info, err := os.Stat(filepath.Join(base, "2026-10-19"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManagerEmptyDirectoryStartsAtOne(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "2026-10-19"), 0755))
	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
}

func TestManagerCurrentDoesNotIncrement(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), "avi", timeutil.NewMockClock(day(2026, 10, 19)))

	for i := 0; i < 3; i++ {
		s, err := m.Current()
		require.NoError(t, err)
		assert.Equal(t, 1, s.Count)
	}

	first, err := m.Next()
	require.NoError(t, err)
	second, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, 2, second.Count)

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)
}

func TestManagerCountIsNotRescanned(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))

	_, err := m.Next()
	require.NoError(t, err)

	// A file appearing mid-session is not picked up; the count lives in memory.
	touch(t, filepath.Join(base, "2026-10-19", "output_50.avi"))

	out, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
}

func TestManagerDateRollover(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	clock := timeutil.NewMockClock(day(2026, 10, 19))
	dir := filepath.Join(base, "2026-10-19")
	require.NoError(t, os.MkdirAll(dir, 0755))
	touch(t, filepath.Join(dir, "output_41.avi"))

	m := NewManager(base, "avi", clock)
	out, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, 42, out.Count)

	clock.Advance(24 * time.Hour)

	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, Session{Date: "2026-10-20", Count: 1}, s)

	info, err := os.Stat(filepath.Join(base, "2026-10-20"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	out, err = m.Next()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "2026-10-20", "output_1.avi"), out.Path)
}

func TestManagerRolloverIntoPopulatedDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	clock := timeutil.NewMockClock(day(2026, 10, 19))
	m := NewManager(base, "avi", clock)
	_, err := m.Current()
	require.NoError(t, err)

	next := filepath.Join(base, "2026-10-20")
	require.NoError(t, os.MkdirAll(next, 0755))
	touch(t, filepath.Join(next, "output_3.avi"))

	clock.Advance(24 * time.Hour)
	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
}

func TestManagerNamingViolationIsFatal(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "2026-10-19")
	require.NoError(t, os.MkdirAll(dir, 0755))
	touch(t, filepath.Join(dir, "output_1.avi"))
	touch(t, filepath.Join(dir, "thumbnail.jpg"))

	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))
	_, err := m.Current()
	assert.ErrorIs(t, err, ErrNoSequence)

	_, err = m.Next()
	assert.ErrorIs(t, err, ErrNoSequence)
}

func TestManagerIgnoresSubdirectories(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "2026-10-19")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "thumbs"), 0755))
	touch(t, filepath.Join(dir, "output_5.avi"))

	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))
	s, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, 6, s.Count)
}

func TestManagerDirectoryCreationFailure(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	touch(t, blocker)

	m := NewManager(blocker, "avi", timeutil.NewMockClock(day(2026, 10, 19)))
	_, err := m.Current()
	assert.Error(t, err)
}

func TestManagerSessionPathIsFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	touch(t, filepath.Join(base, "2026-10-19"))

	m := NewManager(base, "avi", timeutil.NewMockClock(day(2026, 10, 19)))
	_, err := m.Current()
	assert.Error(t, err)
}
