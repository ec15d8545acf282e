// Package runner executes one dispatch pass: select due tasks, submit each
// to the agent API, record the outcome, and advance last_run_at no matter
// how the dispatch went.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/taskbeat/taskbeat/internal/agent"
	"github.com/taskbeat/taskbeat/internal/metrics"
	"github.com/taskbeat/taskbeat/internal/models"
	"github.com/taskbeat/taskbeat/internal/schedule"
)

// bookkeepTimeout bounds the outcome writes after a dispatch. They run on a
// context that survives pass cancellation.
const bookkeepTimeout = 30 * time.Second

// TaskStore is the slice of the task repository the runner needs.
type TaskStore interface {
	List(ctx context.Context, includeInactive bool) ([]models.ScheduledTask, error)
	UpdateLastRun(ctx context.Context, id int64, at time.Time) error
}

// RunStore records run history.
type RunStore interface {
	Insert(ctx context.Context, run *models.TaskRun) error
	Finish(ctx context.Context, id, status string, agentJobID, result, errMsg *string, at time.Time) error
	MarkStaleRunning(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error)
}

// Agent dispatches a task and waits for its terminal state.
type Agent interface {
	Run(ctx context.Context, req agent.TaskRequest) (*agent.Job, error)
}

// Notifier is told about failed tasks.
type Notifier interface {
	NotifyFailure(ctx context.Context, taskName string, taskID int64, errMsg string) error
}

// Config wires a Runner.
type Config struct {
	Tasks    TaskStore
	Runs     RunStore
	Agent    Agent
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// PerTaskTimeout caps one submit-and-poll cycle (default 5m).
	PerTaskTimeout time.Duration
	// MaxRPS paces outbound dispatches (default 1 per second).
	MaxRPS int
	// StaleAfter is the age at which leftover running rows are failed (default 1h).
	StaleAfter time.Duration
	// Now substitutes the clock in tests.
	Now func() time.Time
}

// Runner performs one pass over the scheduled tasks and exits. It holds no
// timers and no background state; invoking it again is a new pass.
type Runner struct {
	tasks    TaskStore
	runs     RunStore
	agent    Agent
	notifier Notifier
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	log      zerolog.Logger

	perTaskTimeout time.Duration
	staleAfter     time.Duration
	now            func() time.Time
}

// New returns a Runner, applying defaults for unset knobs.
func New(cfg Config) *Runner {
	if cfg.PerTaskTimeout <= 0 {
		cfg.PerTaskTimeout = 5 * time.Minute
	}
	if cfg.MaxRPS <= 0 {
		cfg.MaxRPS = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{
		tasks:          cfg.Tasks,
		runs:           cfg.Runs,
		agent:          cfg.Agent,
		notifier:       cfg.Notifier,
		metrics:        cfg.Metrics,
		limiter:        rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1),
		log:            cfg.Logger.With().Str("component", "runner").Logger(),
		perTaskTimeout: cfg.PerTaskTimeout,
		staleAfter:     cfg.StaleAfter,
		now:            cfg.Now,
	}
}

// Summary is the outcome of one pass.
type Summary struct {
	Scanned    int
	Due        int
	Dispatched int
	Succeeded  int
	Failed     int
	Stale      int64
}

// Run performs one pass and returns its summary. Individual task failures
// are recorded, notified, and counted; they never abort the pass. An error
// is returned only when the store itself cannot be used or the context is
// canceled.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := r.now()

	stale, err := r.runs.MarkStaleRunning(ctx, r.staleAfter, start)
	if err != nil {
		return sum, fmt.Errorf("mark stale runs: %w", err)
	}
	if stale > 0 {
		r.log.Warn().Int64("count", stale).Msg("failed runs abandoned by an earlier invocation")
	}
	sum.Stale = stale

	tasks, err := r.tasks.List(ctx, false)
	if err != nil {
		return sum, fmt.Errorf("list tasks: %w", err)
	}
	sum.Scanned = len(tasks)

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		spec, ok := schedule.ParseOrDefault(t.Schedule)
		if !ok {
			r.log.Warn().Int64("task_id", t.ID).Str("schedule", t.Schedule).
				Dur("fallback", schedule.DefaultInterval).
				Msg("unrecognized schedule, using default interval")
		}
		if !spec.Due(t.LastRunAt, r.now()) {
			continue
		}
		sum.Due++

		if err := r.limiter.Wait(ctx); err != nil {
			return sum, err
		}

		sum.Dispatched++
		if status := r.dispatch(ctx, t); status == models.RunStatusCompleted {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}

	if r.metrics != nil {
		r.metrics.TasksDue.Set(float64(sum.Due))
		r.metrics.LastRun.Set(float64(r.now().Unix()))
	}
	r.log.Info().
		Int("scanned", sum.Scanned).
		Int("due", sum.Due).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Dur("elapsed", r.now().Sub(start)).
		Msg("run complete")
	return sum, nil
}

// dispatch sends one task to the agent and books the outcome. last_run_at
// advances on every path out of here so a broken task cannot retry-storm.
func (r *Runner) dispatch(ctx context.Context, t models.ScheduledTask) string {
	startedAt := r.now()
	log := r.log.With().Int64("task_id", t.ID).Str("task", t.TaskName).Logger()
	log.Info().Str("schedule", t.Schedule).Msg("dispatching")

	run := &models.TaskRun{
		ID:        uuid.NewString(),
		TaskID:    t.ID,
		Status:    models.RunStatusRunning,
		StartedAt: startedAt,
	}
	if err := r.runs.Insert(ctx, run); err != nil {
		// History is best-effort; the dispatch itself still proceeds.
		log.Error().Err(err).Msg("insert run row")
		run.ID = ""
	}

	req := agent.TaskRequest{Query: t.Query, UserID: t.UserID}
	if t.OutputSchema != nil {
		req.OutputSchema = *t.OutputSchema
	}

	taskCtx, cancel := context.WithTimeout(ctx, r.perTaskTimeout)
	job, err := r.agent.Run(taskCtx, req)
	cancel()

	// ctx may already be canceled here (shutdown arrived mid-task). The
	// outcome writes get their own context so the run row does not stay
	// running and last_run_at still advances.
	bookCtx, cancelBook := context.WithTimeout(context.WithoutCancel(ctx), bookkeepTimeout)
	defer cancelBook()

	status := models.RunStatusCompleted
	var jobID, result, errMsg *string
	switch {
	case err != nil:
		status = models.RunStatusFailed
		errMsg = ptr(err.Error())
		log.Error().Err(err).Msg("agent dispatch failed")
	case job.Status == agent.StatusFailed:
		status = models.RunStatusFailed
		jobID = ptr(job.ID)
		errMsg = ptr(job.Error)
		if job.Error == "" {
			errMsg = ptr("task failed")
		}
		log.Warn().Str("job_id", job.ID).Str("error", job.Error).Msg("task failed")
	default:
		jobID = ptr(job.ID)
		if len(job.Result) > 0 {
			result = ptr(string(job.Result))
		}
		log.Info().Str("job_id", job.ID).Dur("took", r.now().Sub(startedAt)).Msg("task completed")
	}

	finishedAt := r.now()
	if run.ID != "" {
		if err := r.runs.Finish(bookCtx, run.ID, status, jobID, result, errMsg, finishedAt); err != nil {
			log.Error().Err(err).Msg("finish run row")
		}
	}

	if err := r.tasks.UpdateLastRun(bookCtx, t.ID, startedAt); err != nil {
		log.Error().Err(err).Msg("update last_run_at")
	}

	if status == models.RunStatusFailed && r.notifier != nil {
		msg := ""
		if errMsg != nil {
			msg = *errMsg
		}
		if err := r.notifier.NotifyFailure(bookCtx, t.TaskName, t.ID, msg); err != nil {
			log.Warn().Err(err).Msg("failure notification")
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveTask(status, finishedAt.Sub(startedAt).Seconds())
	}
	return status
}

// Decision explains why a task would or would not be dispatched right now.
type Decision struct {
	Task   models.ScheduledTask
	Due    bool
	Reason string
}

// DryRun evaluates due-ness for every active task without dispatching.
func (r *Runner) DryRun(ctx context.Context) ([]Decision, error) {
	tasks, err := r.tasks.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	now := r.now()
	out := make([]Decision, 0, len(tasks))
	for _, t := range tasks {
		spec, ok := schedule.ParseOrDefault(t.Schedule)
		d := Decision{Task: t, Due: spec.Due(t.LastRunAt, now)}
		switch {
		case !ok:
			d.Reason = fmt.Sprintf("unrecognized schedule %q, default %s", t.Schedule, schedule.DefaultInterval)
		case t.LastRunAt == nil:
			d.Reason = "never run"
		default:
			d.Reason = fmt.Sprintf("last run %s ago", now.Sub(*t.LastRunAt).Round(time.Second))
		}
		out = append(out, d)
	}
	return out, nil
}

func ptr(s string) *string { return &s }
