package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/models"
)

// MemoryTaskRepo is the reference task store: a mutex-guarded map with
// the same conditional-transition semantics as the Postgres repo. Used
// in tests and for running the API without a database.
type MemoryTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[string]*models.Task)}
}

func (r *MemoryTaskRepo) CreateBatch(_ context.Context, tasks []*models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range tasks {
		t.CreatedAt = now
		t.UpdatedAt = now
		cp := *t
		r.tasks[t.TaskNo] = &cp
	}
	return nil
}

func (r *MemoryTaskRepo) GetByTaskNo(_ context.Context, taskNo string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskNo]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepo) GetByProviderTaskID(_ context.Context, providerTaskID string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ProviderTaskID != "" && t.ProviderTaskID == providerTaskID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryTaskRepo) MarkRunning(_ context.Context, taskNo, providerTaskID string, startedAt time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskNo]
	if !ok || t.Status != models.TaskStatusPending {
		return nil, ErrStaleStatus
	}
	t.ProviderTaskID = providerTaskID
	t.Status = models.TaskStatusRunning
	t.StartedAt = &startedAt
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*models.Task
	for _, t := range r.tasks {
		if t.UserID == userID {
			cp := *t
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *MemoryTaskRepo) MarkSucceeded(_ context.Context, taskNo, resultURL string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskNo]
	if !ok || t.Status != models.TaskStatusRunning {
		return nil, ErrStaleStatus
	}
	t.Status = models.TaskStatusSucceeded
	t.ResultURL = resultURL
	t.ResultData = resultData
	t.CompletedAt = &completedAt
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepo) MarkFailed(_ context.Context, taskNo, failReason string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskNo]
	if !ok || t.Status != models.TaskStatusRunning {
		return nil, ErrStaleStatus
	}
	t.Status = models.TaskStatusFailed
	t.FailReason = failReason
	t.ResultData = resultData
	t.CompletedAt = &completedAt
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}
