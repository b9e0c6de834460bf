package services

import (
	"context"
	"time"

	"camwatch/internal/camera"
	"camwatch/internal/motion"
	"camwatch/internal/pipeline"
	"camwatch/internal/session"
	"camwatch/internal/timeutil"
)

// PipelineStats exposes the capture loop counters.
type PipelineStats interface {
	Stats() pipeline.Stats
	Running() bool
}

// OutputTracker reports the file currently being recorded.
type OutputTracker interface {
	Current() session.OutputFile
	RecordingID() string
	BaseDir() string
}

// DeviceInfo describes the negotiated capture device.
type DeviceInfo struct {
	Index      int               `json:"index"`
	Resolution camera.Resolution `json:"resolution"`
	FPS        float64           `json:"fps"`
}

// SystemStatus is the response of GET /api/system.
type SystemStatus struct {
	Device    DeviceInfo     `json:"device"`
	Detection motion.Config  `json:"detection"`
	Running   bool           `json:"running"`
	Stats     pipeline.Stats `json:"stats"`
	Output    *OutputStatus  `json:"output,omitempty"`
	Uptime    string         `json:"uptime"`
	StartedAt time.Time      `json:"started_at"`
}

// OutputStatus names the current output file.
type OutputStatus struct {
	BaseDir     string `json:"base_dir"`
	Path        string `json:"path"`
	Date        string `json:"date"`
	Count       int    `json:"count"`
	RecordingID string `json:"recording_id,omitempty"`
}

// SystemService reports the overall state of the recorder
type SystemService struct {
	device    DeviceInfo
	detection motion.Config
	pipeline  PipelineStats
	output    OutputTracker
	clock     timeutil.Clock
	startTime time.Time
}

// NewSystemService creates a new system service. output may be nil.
func NewSystemService(device DeviceInfo, detection motion.Config, p PipelineStats, output OutputTracker, clock timeutil.Clock) *SystemService {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SystemService{
		device:    device,
		detection: detection,
		pipeline:  p,
		output:    output,
		clock:     clock,
		startTime: clock.Now(),
	}
}

// Status returns the overall system status
func (s *SystemService) Status(ctx context.Context) *SystemStatus {
	st := &SystemStatus{
		Device:    s.device,
		Detection: s.detection,
		Running:   s.pipeline.Running(),
		Stats:     s.pipeline.Stats(),
		Uptime:    s.clock.Since(s.startTime).Truncate(time.Second).String(),
		StartedAt: s.startTime,
	}
	if s.output != nil {
		f := s.output.Current()
		st.Output = &OutputStatus{
			BaseDir:     s.output.BaseDir(),
			Path:        f.Path,
			Date:        f.Date,
			Count:       f.Count,
			RecordingID: s.output.RecordingID(),
		}
	}
	return st
}
