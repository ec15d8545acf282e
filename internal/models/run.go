package models

import "time"

// Run statuses. A run is inserted as running and finished as completed or
// failed; rows left running by an interrupted invocation are failed on the
// next pass.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// TaskRun records one dispatch of one scheduled task.
type TaskRun struct {
	ID         string     `json:"id"`
	TaskID     int64      `json:"task_id"`
	AgentJobID *string    `json:"agent_job_id,omitempty"`
	Status     string     `json:"status"`
	Result     *string    `json:"result,omitempty"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
