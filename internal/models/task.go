package models

import "time"

// ScheduledTask is one row of scheduled_tasks. Rows are created and
// deactivated by the owning product; this service only reads them and
// advances LastRunAt after each dispatch.
type ScheduledTask struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	TaskName     string     `json:"task_name"`
	Query        string     `json:"query"`
	OutputSchema *string    `json:"output_schema,omitempty"`
	Schedule     string     `json:"schedule"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
