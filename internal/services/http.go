package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"camwatch/internal/auth"
	"camwatch/internal/health"
	"camwatch/internal/middleware"
	"camwatch/internal/stream"
	"camwatch/internal/ws"
)

// Paths reachable without a token.
var publicPaths = []string{"/health", "/healthz", "/auth/login"}

// HandlerConfig wires the operator API. Every field except Health may be nil,
// in which case the corresponding routes are not mounted.
type HandlerConfig struct {
	Health     *health.Service
	Auth       *auth.Authenticator
	Recordings *RecordingService
	System     *SystemService
	Streams    *stream.MJPEGStreamManager
	Motion     *ws.MotionHub
	// Debug logs every request.
	Debug bool
}

// NewHandler builds the HTTP handler for the operator API.
func NewHandler(cfg HandlerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", cfg.Health.Readyz)
	mux.HandleFunc("GET /healthz", cfg.Health.Healthz)

	if cfg.Auth != nil {
		svc := NewAuthService(cfg.Auth)
		mux.HandleFunc("POST /auth/login", loginHandler(svc))
		mux.HandleFunc("GET /auth/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status(r.Context()))
		})
	}

	if cfg.Streams != nil {
		mux.Handle("GET /stream/{stage}", cfg.Streams)
		mux.Handle("GET /snapshot/{stage}", stream.NewSnapshotHandler(cfg.Streams))
	}

	if cfg.Motion != nil {
		mux.Handle("GET /ws/motion", ws.NewHandler(cfg.Motion))
	}

	if cfg.Recordings != nil {
		mux.HandleFunc("GET /api/recordings", listRecordingsHandler(cfg.Recordings))
		mux.HandleFunc("GET /api/recordings/{id}", getRecordingHandler(cfg.Recordings))
		mux.HandleFunc("GET /api/recordings/{id}/events", listEventsHandler(cfg.Recordings))
	}

	if cfg.System != nil {
		mux.HandleFunc("GET /api/system", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cfg.System.Status(r.Context()))
		})
	}

	var handler http.Handler = mux
	if cfg.Auth != nil {
		handler = middleware.AuthMiddleware(cfg.Auth, publicPaths...)(handler)
	}
	if cfg.Debug {
		handler = logRequests(handler)
	}
	return handler
}

func loginHandler(svc *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload LoginPayload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Login(r.Context(), &payload)
		if err != nil {
			var unauthorized *UnauthorizedError
			if errors.As(err, &unauthorized) {
				writeError(w, http.StatusUnauthorized, unauthorized.Message)
				return
			}
			log.Printf("[API] Login failed: %v", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listRecordingsHandler(svc *RecordingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		recs, err := svc.List(r.Context(), r.URL.Query().Get("date"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func getRecordingHandler(svc *RecordingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func listEventsHandler(svc *RecordingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var since *time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
				return
			}
			since = &t
		}

		events, err := svc.Events(r.Context(), r.PathValue("id"), since, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	var parseErr *time.ParseError
	if errors.As(err, &parseErr) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[API] Request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required for websocket upgrades.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[API] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Truncate(time.Microsecond))
	})
}
