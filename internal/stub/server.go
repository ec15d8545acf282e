// Package stub is a local stand-in for the browser-automation agent API.
// It accepts task submissions, holds them "running" for a scripted delay,
// and settles them with fixture-driven results so runs can be exercised
// without the real service.
package stub

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskbeat/taskbeat/internal/agent"
)

var defaultResult = json.RawMessage(`{"message":"stub task completed"}`)

// stubJob is one submitted task. Its visible status is computed from the
// clock: running until settleAt, then the scripted final state.
type stubJob struct {
	id        string
	createdAt time.Time
	settleAt  time.Time
	final     string
	result    json.RawMessage
	errMsg    string
}

// Server holds the in-memory job table.
type Server struct {
	apiKey   string
	fixtures *Fixtures
	log      zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*stubJob

	now func() time.Time
}

// NewServer returns a stub server. apiKey may be empty to disable auth;
// fixtures may be nil, in which case every task completes generically.
func NewServer(apiKey string, fixtures *Fixtures, log zerolog.Logger) *Server {
	return &Server{
		apiKey:   apiKey,
		fixtures: fixtures,
		log:      log.With().Str("component", "stub").Logger(),
		jobs:     make(map[string]*stubJob),
		now:      time.Now,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLog)
	r.Use(s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(s.requireKey)
		}
		r.Post("/tasks", s.createTask)
		r.Get("/tasks/{id}", s.getTask)
	})
	return r
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Query        string `json:"query"`
		OutputSchema string `json:"output_schema"`
		UserID       string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Query == "" {
		jsonError(w, "invalid JSON or missing query", http.StatusBadRequest)
		return
	}

	now := s.now()
	job := &stubJob{
		createdAt: now,
		settleAt:  now,
		final:     agent.StatusCompleted,
		result:    defaultResult,
	}
	matched := ""
	if rule := s.fixtures.find(input.Query); rule != nil {
		matched = rule.Match
		job.settleAt = now.Add(rule.delay)
		if rule.Error != "" {
			job.final = agent.StatusFailed
			job.errMsg = rule.Error
			job.result = nil
		} else if rule.resultJSON != nil {
			job.result = rule.resultJSON
		}
	}

	job.id = uuid.NewString()
	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()

	s.log.Info().
		Str("job_id", job.id).
		Str("user_id", input.UserID).
		Str("matched", matched).
		Str("final", job.final).
		Msg("task accepted")

	writeJSON(w, http.StatusAccepted, agent.Job{ID: job.id, Status: agent.StatusQueued})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	job, exists := s.jobs[id]
	s.mu.Unlock()

	if !exists {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.view(job))
}

// view renders a job at the current clock.
func (s *Server) view(j *stubJob) agent.Job {
	if s.now().Before(j.settleAt) {
		return agent.Job{ID: j.id, Status: agent.StatusRunning}
	}
	return agent.Job{ID: j.id, Status: j.final, Result: j.result, Error: j.errMsg}
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.apiKey {
			jsonError(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// requestLog logs each request. Runs after RequestID so the id is available.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		s.log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrap.status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int("size", wrap.size).
			Msg("request")
	})
}

// recoverer turns panics into 500s so one bad request cannot kill the stub.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				jsonError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
