package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/newdo/backend/internal/models"
	"github.com/newdo/backend/internal/services"
)

// Snooze interval between background polls of a non-terminal task.
const pollInterval = 5 * time.Second

type AdvanceTaskArgs struct {
	TaskNo string `json:"task_no"`
}

func (AdvanceTaskArgs) Kind() string { return "advance_task" }

// TaskAdvancer is the lifecycle contract the worker drives.
type TaskAdvancer interface {
	Advance(ctx context.Context, taskNo string) (*services.AdvanceResult, error)
}

// AdvanceTaskWorker drives tasks to a terminal state in the background.
// One job per task: the job snoozes until the task settles, so users who
// never poll still get their results reconciled.
type AdvanceTaskWorker struct {
	river.WorkerDefaults[AdvanceTaskArgs]
	lifecycle TaskAdvancer
	logger    *slog.Logger
}

func NewAdvanceTaskWorker(lifecycle TaskAdvancer, logger *slog.Logger) *AdvanceTaskWorker {
	return &AdvanceTaskWorker{lifecycle: lifecycle, logger: logger}
}

func (w *AdvanceTaskWorker) Work(ctx context.Context, job *river.Job[AdvanceTaskArgs]) error {
	result, err := w.lifecycle.Advance(ctx, job.Args.TaskNo)
	if err != nil {
		if errors.Is(err, services.ErrInvalidReference) {
			// Task row is gone; nothing left to drive.
			w.logger.Warn("advance job dropped, task not found", "task_no", job.Args.TaskNo)
			return river.JobCancel(err)
		}
		return err
	}

	if result.Task.Status == models.TaskStatusSucceeded || result.Task.Status == models.TaskStatusFailed {
		return nil
	}
	return river.JobSnooze(pollInterval)
}
