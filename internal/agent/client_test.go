package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Run_PollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing or wrong X-API-Key: %q", r.Header.Get("X-API-Key"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks":
			var req TaskRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode submit body: %v", err)
			}
			if req.Query != "check the weather" || req.UserID != "user-1" {
				t.Errorf("unexpected request: %+v", req)
			}
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusQueued})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/tasks/job-1":
			n := polls.Add(1)
			if n < 3 {
				json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusRunning})
				return
			}
			json.NewEncoder(w).Encode(Job{
				ID:     "job-1",
				Status: StatusCompleted,
				Result: json.RawMessage(`{"temperature":"21C"}`),
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", WithPollInterval(5*time.Millisecond))
	job, err := c.Run(context.Background(), TaskRequest{Query: "check the weather", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", job.Status)
	}
	if string(job.Result) != `{"temperature":"21C"}` {
		t.Errorf("unexpected result: %s", job.Result)
	}
	if polls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestClient_Run_FailedJobIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(Job{ID: "job-2", Status: StatusQueued})
			return
		}
		json.NewEncoder(w).Encode(Job{ID: "job-2", Status: StatusFailed, Error: "browser session lost"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithPollInterval(5*time.Millisecond))
	job, err := c.Run(context.Background(), TaskRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != StatusFailed || job.Error != "browser session lost" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestClient_Run_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(Job{ID: "job-3", Status: StatusQueued})
			return
		}
		// Never finishes.
		json.NewEncoder(w).Encode(Job{ID: "job-3", Status: StatusRunning})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "", WithPollInterval(5*time.Millisecond))
	_, err := c.Run(ctx, TaskRequest{Query: "slow task"})
	if err == nil {
		t.Fatal("expected deadline error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestClient_Run_PollNotFoundStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(Job{ID: "job-4", Status: StatusQueued})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "task not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithPollInterval(5*time.Millisecond))
	_, err := c.Run(context.Background(), TaskRequest{Query: "vanishing task"})
	if err == nil {
		t.Fatal("expected error for 404 poll, got nil")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected 404 StatusError, got %v", err)
	}
}

func TestClient_Run_RetriesTransientPollErrors(t *testing.T) {
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(Job{ID: "job-5", Status: StatusQueued})
			return
		}
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Job{ID: "job-5", Status: StatusCompleted})
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithPollInterval(5*time.Millisecond))
	job, err := c.Run(context.Background(), TaskRequest{Query: "flaky poll"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", job.Status)
	}
}

func TestClient_Submit_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(Job{Status: StatusQueued})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Submit(context.Background(), TaskRequest{Query: "q"}); err == nil {
		t.Fatal("expected error for missing task id, got nil")
	}
}

func TestClient_Submit_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
	}))
	defer srv.Close()

	c := New(srv.URL, "wrong")
	_, err := c.Submit(context.Background(), TaskRequest{Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusUnauthorized || se.Msg != "invalid api key" {
		t.Errorf("unexpected StatusError: %+v", se)
	}
}
