package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskbeat/taskbeat/internal/models"
)

// TaskRepo reads scheduled tasks. Task rows are created and deactivated by
// the owning product; the only columns this service writes are last_run_at
// and updated_at.
type TaskRepo struct {
	DB     *sql.DB
	Driver string
}

// NewTaskRepo returns a new TaskRepo for the given driver.
func NewTaskRepo(db *sql.DB, driver string) *TaskRepo {
	return &TaskRepo{DB: db, Driver: driver}
}

const taskColumns = `id, user_id, task_name, query, output_schema, schedule, last_run_at, is_active, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (*models.ScheduledTask, error) {
	var t models.ScheduledTask
	var outputSchema sql.NullString
	var lastRun sql.NullTime
	err := scan(
		&t.ID, &t.UserID, &t.TaskName, &t.Query, &outputSchema,
		&t.Schedule, &lastRun, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if outputSchema.Valid {
		t.OutputSchema = &outputSchema.String
	}
	if lastRun.Valid {
		t.LastRunAt = &lastRun.Time
	}
	return &t, nil
}

// List returns scheduled tasks ordered by id. Inactive rows are excluded
// unless includeInactive is set.
func (r *TaskRepo) List(ctx context.Context, includeInactive bool) ([]models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE is_active = TRUE ORDER BY id`
	if includeInactive {
		query = `SELECT ` + taskColumns + ` FROM scheduled_tasks ORDER BY id`
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Get returns one task by id, or nil if not found.
func (r *TaskRepo) Get(ctx context.Context, id int64) (*models.ScheduledTask, error) {
	query := rebind(r.Driver, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = $1`)
	t, err := scanTask(r.DB.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateLastRun advances last_run_at (and updated_at) for one task. It is
// called after every dispatch, whether the remote call succeeded or failed.
func (r *TaskRepo) UpdateLastRun(ctx context.Context, id int64, at time.Time) error {
	query := rebind(r.Driver, `UPDATE scheduled_tasks SET last_run_at = $1, updated_at = $2 WHERE id = $3`)
	res, err := r.DB.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %d not found", id)
	}
	return nil
}
