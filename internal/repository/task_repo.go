package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newdo/backend/internal/models"
)

// ErrNotFound is returned when no task matches the given key.
var ErrNotFound = errors.New("task not found")

// ErrStaleStatus is returned when a conditional status transition matched
// no row: the task is gone or another caller already advanced it. Callers
// treat this as losing the race, not as a failure.
var ErrStaleStatus = errors.New("task status already advanced")

const taskColumns = `task_no, user_id, provider, provider_task_id, status, aspect,
	estimated_start_at, started_at, completed_at, request_param, input_params, ext,
	result_url, result_data, fail_reason, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// CreateBatch inserts all tasks inside one transaction so a caller never
// observes a half-created batch in listings.
func (r *TaskRepo) CreateBatch(ctx context.Context, tasks []*models.Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range tasks {
		err := tx.QueryRow(ctx, `
			INSERT INTO ai_tasks (task_no, user_id, provider, provider_task_id, status, aspect, estimated_start_at, request_param, input_params, ext)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`, t.TaskNo, t.UserID, t.Provider, t.ProviderTaskID, t.Status, t.Aspect, t.EstimatedStartAt, t.RequestParam, t.InputParams, t.Ext).Scan(&t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *TaskRepo) GetByTaskNo(ctx context.Context, taskNo string) (*models.Task, error) {
	return r.getWhere(ctx, "task_no = $1", taskNo)
}

func (r *TaskRepo) GetByProviderTaskID(ctx context.Context, providerTaskID string) (*models.Task, error) {
	return r.getWhere(ctx, "provider_task_id = $1", providerTaskID)
}

func (r *TaskRepo) getWhere(ctx context.Context, cond string, arg any) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM ai_tasks WHERE `+cond, arg)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// MarkRunning records a successful dispatch. The status condition makes it
// a compare-and-swap: under concurrent advance calls at most one wins.
func (r *TaskRepo) MarkRunning(ctx context.Context, taskNo, providerTaskID string, startedAt time.Time) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE ai_tasks
		SET provider_task_id = $2, status = $3, started_at = $4, updated_at = now()
		WHERE task_no = $1 AND status = $5
		RETURNING `+taskColumns, taskNo, providerTaskID, models.TaskStatusRunning, startedAt, models.TaskStatusPending)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleStatus
	}
	return t, err
}

// MarkSucceeded resolves a running task to its terminal success state.
func (r *TaskRepo) MarkSucceeded(ctx context.Context, taskNo, resultURL string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE ai_tasks
		SET status = $2, result_url = $3, result_data = $4, completed_at = $5, updated_at = now()
		WHERE task_no = $1 AND status = $6
		RETURNING `+taskColumns, taskNo, models.TaskStatusSucceeded, resultURL, resultData, completedAt, models.TaskStatusRunning)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleStatus
	}
	return t, err
}

// MarkFailed resolves a running task to its terminal failure state.
func (r *TaskRepo) MarkFailed(ctx context.Context, taskNo, failReason string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE ai_tasks
		SET status = $2, fail_reason = $3, result_data = $4, completed_at = $5, updated_at = now()
		WHERE task_no = $1 AND status = $6
		RETURNING `+taskColumns, taskNo, models.TaskStatusFailed, failReason, resultData, completedAt, models.TaskStatusRunning)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleStatus
	}
	return t, err
}

func (r *TaskRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM ai_tasks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.TaskNo, &t.UserID, &t.Provider, &t.ProviderTaskID, &t.Status, &t.Aspect,
		&t.EstimatedStartAt, &t.StartedAt, &t.CompletedAt, &t.RequestParam, &t.InputParams, &t.Ext,
		&t.ResultURL, &t.ResultData, &t.FailReason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
