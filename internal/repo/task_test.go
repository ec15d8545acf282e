package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/taskbeat/taskbeat/internal/db"
)

var taskCols = []string{
	"id", "user_id", "task_name", "query", "output_schema",
	"schedule", "last_run_at", "is_active", "created_at", "updated_at",
}

func TestTaskRepo_List_ActiveOnly(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	now := time.Now()
	lastRun := now.Add(-2 * time.Hour)
	mock.ExpectQuery(`SELECT id, user_id, task_name, query, output_schema, schedule, last_run_at, is_active, created_at, updated_at FROM scheduled_tasks WHERE is_active = TRUE ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(1, "user-a", "price check", "find the current price of X", nil, "every 2 hours", lastRun, true, now, now).
			AddRow(2, "user-b", "news digest", "summarize today's news", `{"type":"object"}`, "every day", nil, true, now, now))

	r := NewTaskRepo(conn, db.DriverPostgres)
	list, err := r.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].ID != 1 || list[0].TaskName != "price check" || list[0].Schedule != "every 2 hours" {
		t.Errorf("unexpected first task: %+v", list[0])
	}
	if list[0].LastRunAt == nil || !list[0].LastRunAt.Equal(lastRun) {
		t.Errorf("expected last_run_at %v, got %v", lastRun, list[0].LastRunAt)
	}
	if list[0].OutputSchema != nil {
		t.Errorf("expected nil output_schema, got %q", *list[0].OutputSchema)
	}
	if list[1].LastRunAt != nil {
		t.Errorf("expected never-run task, got last_run_at %v", list[1].LastRunAt)
	}
	if list[1].OutputSchema == nil || *list[1].OutputSchema != `{"type":"object"}` {
		t.Errorf("unexpected output_schema: %v", list[1].OutputSchema)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_List_IncludeInactive(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, task_name, query, output_schema, schedule, last_run_at, is_active, created_at, updated_at FROM scheduled_tasks ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(3, "user-c", "disabled job", "noop", nil, "every hour", nil, false, now, now))

	r := NewTaskRepo(conn, db.DriverPostgres)
	list, err := r.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].IsActive {
		t.Errorf("expected one inactive task, got %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_Get(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, task_name, query, output_schema, schedule, last_run_at, is_active, created_at, updated_at FROM scheduled_tasks WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(7, "user-a", "price check", "find the current price of X", nil, "30m", now, true, now, now))

	r := NewTaskRepo(conn, db.DriverPostgres)
	task, err := r.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task == nil {
		t.Fatal("expected task, got nil")
	}
	if task.ID != 7 || task.UserID != "user-a" || task.Schedule != "30m" {
		t.Errorf("unexpected task: %+v", task)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_Get_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(`SELECT id, user_id, task_name`).
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	r := NewTaskRepo(conn, db.DriverPostgres)
	task, err := r.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil, got %+v", task)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_UpdateLastRun(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE scheduled_tasks SET last_run_at = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(at, at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewTaskRepo(conn, db.DriverPostgres)
	if err := r.UpdateLastRun(context.Background(), 1, at); err != nil {
		t.Fatalf("UpdateLastRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_UpdateLastRun_NoRow(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE scheduled_tasks SET last_run_at`).
		WithArgs(at, at, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewTaskRepo(conn, db.DriverPostgres)
	if err := r.UpdateLastRun(context.Background(), 42, at); err == nil {
		t.Fatal("expected error for missing task, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTaskRepo_UpdateLastRun_SQLiteRebind(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE scheduled_tasks SET last_run_at = \?, updated_at = \? WHERE id = \?`).
		WithArgs(at, at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewTaskRepo(conn, db.DriverSQLite)
	if err := r.UpdateLastRun(context.Background(), 1, at); err != nil {
		t.Fatalf("UpdateLastRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
