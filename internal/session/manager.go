// Package session manages the per-day output directories and the sequence
// numbers of the recordings written into them.
package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"camwatch/internal/timeutil"
)

// Session identifies a recording day and the next free sequence number.
type Session struct {
	Date  string
	Count int
}

// OutputFile is a path handed out for a new recording.
type OutputFile struct {
	Date  string
	Count int
	Ext   string
	Path  string
}

// Manager hands out collision-free output paths below a base directory.
// A date directory is scanned once, when its session starts; afterwards the
// count only advances in memory.
type Manager struct {
	baseDir string
	ext     string
	clock   timeutil.Clock

	mu      sync.Mutex
	active  bool
	session Session
}

// NewManager creates a manager rooted at baseDir for files with extension ext.
func NewManager(baseDir, ext string, clock timeutil.Clock) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		baseDir: baseDir,
		ext:     ext,
		clock:   clock,
	}
}

// BaseDir returns the directory session directories are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Dir returns the directory for a session date.
func (m *Manager) Dir(date string) string {
	return filepath.Join(m.baseDir, date)
}

// Current returns the active session, starting one on the first call and
// rolling over to a fresh directory when the calendar date has changed.
// It never advances the count.
func (m *Manager) Current() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

// Next returns the path for a new output file and advances the count.
func (m *Manager) Next() (OutputFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.current()
	if err != nil {
		return OutputFile{}, err
	}

	out := OutputFile{
		Date:  s.Date,
		Count: s.Count,
		Ext:   m.ext,
		Path:  filepath.Join(m.Dir(s.Date), FileName(s.Count, m.ext)),
	}
	m.session.Count++
	return out, nil
}

func (m *Manager) current() (Session, error) {
	today := m.clock.Now().Format(DateLayout)

	if !m.active {
		count, err := m.start(today)
		if err != nil {
			return Session{}, err
		}
		m.session = Session{Date: today, Count: count}
		m.active = true
		log.Printf("[Session] Started session %s at output %d", today, count)
		return m.session, nil
	}

	if m.session.Date == today {
		return m.session, nil
	}

	count, err := m.rollover(today)
	if err != nil {
		return Session{}, err
	}
	log.Printf("[Session] Date changed %s -> %s, starting at output %d", m.session.Date, today, count)
	m.session = Session{Date: today, Count: count}
	return m.session, nil
}

// start resolves the first count for a date, scanning an existing directory
// or creating a new one.
func (m *Manager) start(date string) (int, error) {
	dir := m.Dir(date)

	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return 0, fmt.Errorf("session path %s exists and is not a directory", dir)
		}
		return m.scan(date)
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create session directory: %w", err)
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("failed to stat session directory: %w", err)
	}
}

// rollover creates the directory for a new date. A freshly rolled-over date
// cannot hold files from this run, so the count restarts at 1. A directory
// that already exists was populated by something else; it is scanned so the
// new files still sort after its contents.
func (m *Manager) rollover(date string) (int, error) {
	dir := m.Dir(date)

	err := os.Mkdir(dir, 0755)
	if err == nil {
		return 1, nil
	}
	if !os.IsExist(err) {
		return 0, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Printf("[Session] Warning: directory %s already existed at rollover, scanning it", dir)
	return m.start(date)
}

// scan returns one past the highest sequence number among the files in the
// directory for date.
func (m *Manager) scan(date string) (int, error) {
	entries, err := os.ReadDir(m.Dir(date))
	if err != nil {
		return 0, fmt.Errorf("failed to read session directory: %w", err)
	}

	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, err := ParseOutputName(date, entry.Name())
		if err != nil {
			return 0, err
		}
		if name.Count > highest {
			highest = name.Count
		}
	}
	return highest + 1, nil
}
