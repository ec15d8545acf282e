package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskbeat/taskbeat/internal/models"
)

// RunRepo persists task run history.
type RunRepo struct {
	DB     *sql.DB
	Driver string
}

// NewRunRepo returns a new RunRepo for the given driver.
func NewRunRepo(db *sql.DB, driver string) *RunRepo {
	return &RunRepo{DB: db, Driver: driver}
}

const runColumns = `id, task_id, agent_job_id, status, result, error, started_at, finished_at`

// Insert records the start of a run, normally with status=running.
func (r *RunRepo) Insert(ctx context.Context, run *models.TaskRun) error {
	query := rebind(r.Driver, `
		INSERT INTO task_runs (id, task_id, agent_job_id, status, result, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		run.ID, run.TaskID, nullString(run.AgentJobID), run.Status,
		nullString(run.Result), nullString(run.Error), run.StartedAt, run.FinishedAt,
	)
	return err
}

// Finish sets the terminal status and outcome for a run.
func (r *RunRepo) Finish(ctx context.Context, id, status string, agentJobID, result, errMsg *string, at time.Time) error {
	query := rebind(r.Driver, `
		UPDATE task_runs SET status = $1, agent_job_id = $2, result = $3, error = $4, finished_at = $5
		WHERE id = $6
	`)
	_, err := r.DB.ExecContext(ctx, query,
		status, nullString(agentJobID), nullString(result), nullString(errMsg), at, id,
	)
	return err
}

// MarkStaleRunning fails running rows older than olderThan. An invocation
// that crashed mid-dispatch leaves such rows behind; the next pass sweeps
// them so history does not show phantom in-flight work.
func (r *RunRepo) MarkStaleRunning(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error) {
	query := rebind(r.Driver, `
		UPDATE task_runs SET status = $1, error = $2, finished_at = $3
		WHERE status = $4 AND started_at < $5
	`)
	res, err := r.DB.ExecContext(ctx, query,
		models.RunStatusFailed, "abandoned by interrupted run", now,
		models.RunStatusRunning, now.Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRun(scan func(dest ...any) error) (*models.TaskRun, error) {
	var run models.TaskRun
	var jobID, result, errMsg sql.NullString
	var finished sql.NullTime
	err := scan(&run.ID, &run.TaskID, &jobID, &run.Status, &result, &errMsg, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if jobID.Valid {
		run.AgentJobID = &jobID.String
	}
	if result.Valid {
		run.Result = &result.String
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

func (r *RunRepo) list(ctx context.Context, query string, args ...any) ([]models.TaskRun, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TaskRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *run)
	}
	return list, rows.Err()
}

// ListRecent returns the most recent runs across all tasks.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]models.TaskRun, error) {
	query := rebind(r.Driver, `SELECT `+runColumns+` FROM task_runs ORDER BY started_at DESC LIMIT $1`)
	return r.list(ctx, query, limit)
}

// ListByTask returns the most recent runs for one task.
func (r *RunRepo) ListByTask(ctx context.Context, taskID int64, limit int) ([]models.TaskRun, error) {
	query := rebind(r.Driver, `SELECT `+runColumns+` FROM task_runs WHERE task_id = $1 ORDER BY started_at DESC LIMIT $2`)
	return r.list(ctx, query, taskID, limit)
}
