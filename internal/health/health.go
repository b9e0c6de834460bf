// Package health reports liveness and readiness over HTTP and the standard
// gRPC health protocol.
package health

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"camwatch/internal/pipeline"
	"camwatch/internal/timeutil"
)

// PipelineService is the gRPC service name whose status follows the pipeline.
const PipelineService = "camwatch.Pipeline"

// Check reports the state of a dependency; nil means healthy.
type Check func() error

// StatsProvider exposes pipeline counters.
type StatsProvider interface {
	Stats() pipeline.Stats
}

// Status is the readiness report.
type Status struct {
	Status  string            `json:"status"`
	Serving bool              `json:"serving"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
	Stats   *pipeline.Stats   `json:"stats,omitempty"`
}

// Service tracks whether the pipeline is serving and runs dependency checks.
type Service struct {
	clock   timeutil.Clock
	started time.Time
	grpc    *grpchealth.Server

	mu      sync.RWMutex
	serving bool
	checks  map[string]Check
	stats   StatsProvider
}

// NewService creates a health service that starts out not serving.
func NewService(clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Service{
		clock:   clock,
		started: clock.Now(),
		grpc:    grpchealth.NewServer(),
		checks:  make(map[string]Check),
	}
	s.SetServing(false)
	return s
}

// AddCheck registers a dependency check reported by readiness.
func (s *Service) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// SetStats attaches a provider whose counters are included in reports.
func (s *Service) SetStats(p StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = p
}

// SetServing updates both the HTTP readiness and the gRPC serving status.
func (s *Service) SetServing(serving bool) {
	s.mu.Lock()
	s.serving = serving
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpc.SetServingStatus("", status)
	s.grpc.SetServingStatus(PipelineService, status)
	log.Printf("[Health] Pipeline status %s", status)
}

// Serving reports whether the pipeline is marked as serving.
func (s *Service) Serving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serving
}

// Report runs the checks and builds the readiness status.
func (s *Service) Report() Status {
	s.mu.RLock()
	serving := s.serving
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	provider := s.stats
	s.mu.RUnlock()

	sort.Strings(names)
	st := Status{
		Status:  "ok",
		Serving: serving,
		Uptime:  s.clock.Since(s.started).Round(time.Second).String(),
	}
	if !serving {
		st.Status = "unavailable"
	}

	if len(names) > 0 {
		st.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](); err != nil {
				st.Checks[name] = err.Error()
				st.Status = "unavailable"
				continue
			}
			st.Checks[name] = "ok"
		}
	}

	if provider != nil {
		stats := provider.Stats()
		st.Stats = &stats
	}
	return st
}

// Healthz is the liveness check; it answers as long as the process runs.
func (s *Service) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is the readiness check.
func (s *Service) Readyz(w http.ResponseWriter, r *http.Request) {
	st := s.Report()
	code := http.StatusOK
	if st.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

// RegisterGRPC registers the standard health service on srv.
func (s *Service) RegisterGRPC(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.grpc)
}

// Shutdown marks every service as not serving and stops watch streams.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.serving = false
	s.mu.Unlock()
	s.grpc.Shutdown()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Health] Failed to encode response: %v", err)
	}
}
