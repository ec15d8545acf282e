// Package agent is the HTTP client for the external browser-automation API:
// submit a task, poll its status until it completes or fails.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Task statuses reported by the agent API.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IsTerminal reports whether status is a final state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// TaskRequest is the submit payload.
type TaskRequest struct {
	Query        string `json:"query"`
	OutputSchema string `json:"output_schema,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

// Job is the agent API's view of a submitted task.
type Job struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusError is a non-2xx response from the agent API.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("agent API: HTTP %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("agent API: HTTP %d", e.Code)
}

// Client talks to the browser-automation agent API.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval overrides the default 3s status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a Client with connection pooling. apiKey may be empty; when
// set it is sent as X-API-Key on every request.
func New(baseURL, apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: 3 * time.Second,
		httpClient: &http.Client{
			// Per-request cap; the whole submit-and-poll cycle is bounded
			// by the caller's context.
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues a task and returns its id and initial status.
func (c *Client) Submit(ctx context.Context, req TaskRequest) (*Job, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/tasks", body)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	job, err := decodeJob(resp)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("submit: response missing task id")
	}
	return job, nil
}

// Get fetches the current state of a task.
func (c *Client) Get(ctx context.Context, id string) (*Job, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/tasks/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	job, err := decodeJob(resp)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return job, nil
}

// Run submits a task and polls until it reaches a terminal state or ctx
// expires. A failed task is returned as a Job, not an error. Transient poll
// errors are retried until the deadline so a minutes-long browser task is
// not lost to one dropped request; a 404 means the task is gone and stops
// the poll immediately.
func (c *Client) Run(ctx context.Context, req TaskRequest) (*Job, error) {
	job, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if IsTerminal(job.Status) {
		return job, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("task %s: %w", job.ID, ctx.Err())
		case <-ticker.C:
		}

		cur, err := c.Get(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("task %s: %w", job.ID, ctx.Err())
			}
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				return nil, err
			}
			continue
		}
		if IsTerminal(cur.Status) {
			return cur, nil
		}
	}
}

// doRequest executes an HTTP request and returns the response. Non-2xx
// responses are turned into a StatusError carrying the body's error field.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := ""
		if b, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
			var apiErr struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
				msg = apiErr.Error
			} else {
				msg = strings.TrimSpace(string(b))
			}
		}
		return nil, &StatusError{Code: resp.StatusCode, Msg: msg}
	}
	return resp, nil
}

func decodeJob(resp *http.Response) (*Job, error) {
	defer resp.Body.Close()
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &job, nil
}
