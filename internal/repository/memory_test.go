package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/models"
)

func seedPending(t *testing.T, repo *MemoryTaskRepo) *models.Task {
	t.Helper()
	task := &models.Task{
		TaskNo:           uuid.NewString(),
		UserID:           uuid.New(),
		Provider:         models.ProviderKie4o,
		Status:           models.TaskStatusPending,
		Aspect:           models.Aspect4o,
		EstimatedStartAt: time.Now(),
	}
	if err := repo.CreateBatch(context.Background(), []*models.Task{task}); err != nil {
		t.Fatal(err)
	}
	return task
}

func TestMarkRunning_RequiresPending(t *testing.T) {
	repo := NewMemoryTaskRepo()
	task := seedPending(t, repo)

	got, err := repo.MarkRunning(context.Background(), task.TaskNo, "prov-1", time.Now())
	if err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if got.Status != models.TaskStatusRunning || got.ProviderTaskID != "prov-1" {
		t.Fatalf("unexpected task: %+v", got)
	}

	// Second transition loses.
	if _, err := repo.MarkRunning(context.Background(), task.TaskNo, "prov-2", time.Now()); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
	stored, _ := repo.GetByTaskNo(context.Background(), task.TaskNo)
	if stored.ProviderTaskID != "prov-1" {
		t.Error("losing transition overwrote provider task id")
	}
}

func TestTerminalTransitions_RequireRunning(t *testing.T) {
	repo := NewMemoryTaskRepo()
	task := seedPending(t, repo)

	// Pending task cannot settle.
	if _, err := repo.MarkSucceeded(context.Background(), task.TaskNo, "url", nil, time.Now()); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus for pending task, got %v", err)
	}

	if _, err := repo.MarkRunning(context.Background(), task.TaskNo, "prov-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MarkFailed(context.Background(), task.TaskNo, "boom", json.RawMessage(`{}`), time.Now()); err != nil {
		t.Fatal(err)
	}

	// Settled tasks are immutable.
	if _, err := repo.MarkSucceeded(context.Background(), task.TaskNo, "url", nil, time.Now()); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus for settled task, got %v", err)
	}
	stored, _ := repo.GetByTaskNo(context.Background(), task.TaskNo)
	if stored.Status != models.TaskStatusFailed || stored.FailReason != "boom" {
		t.Errorf("terminal state changed: %+v", stored)
	}
}

func TestConcurrentSettle_ExactlyOneWins(t *testing.T) {
	repo := NewMemoryTaskRepo()
	task := seedPending(t, repo)
	if _, err := repo.MarkRunning(context.Background(), task.TaskNo, "prov-1", time.Now()); err != nil {
		t.Fatal(err)
	}

	const n = 16
	var wg sync.WaitGroup
	wins := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = repo.MarkSucceeded(context.Background(), task.TaskNo, "url", nil, time.Now())
			} else {
				_, err = repo.MarkFailed(context.Background(), task.TaskNo, "boom", nil, time.Now())
			}
			wins[i] = err == nil
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", winners)
	}
}

func TestGetByProviderTaskID_IgnoresEmptyIDs(t *testing.T) {
	repo := NewMemoryTaskRepo()
	seedPending(t, repo)

	if _, err := repo.GetByProviderTaskID(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty provider id, got %v", err)
	}
}

func TestListByUserID_NewestFirst(t *testing.T) {
	repo := NewMemoryTaskRepo()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		task := &models.Task{
			TaskNo:   uuid.NewString(),
			UserID:   userID,
			Provider: models.ProviderKie4o,
			Status:   models.TaskStatusPending,
		}
		if err := repo.CreateBatch(context.Background(), []*models.Task{task}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	seedPending(t, repo) // other user

	list, err := repo.ListByUserID(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Error("tasks not ordered newest first")
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	repo := NewMemoryTaskRepo()
	task := seedPending(t, repo)

	got, _ := repo.GetByTaskNo(context.Background(), task.TaskNo)
	got.Status = models.TaskStatusFailed

	stored, _ := repo.GetByTaskNo(context.Background(), task.TaskNo)
	if stored.Status != models.TaskStatusPending {
		t.Error("mutation of a returned task leaked into the store")
	}
}
