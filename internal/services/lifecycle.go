package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/kie"
	"github.com/newdo/backend/internal/models"
	"github.com/newdo/backend/internal/prompt"
	"github.com/newdo/backend/internal/providers"
	"github.com/newdo/backend/internal/repository"
)

// ErrInvalidReference is returned when a task number or provider task id
// does not resolve, or resolves to a task in the wrong state for the
// requested operation.
var ErrInvalidReference = errors.New("invalid task reference")

// ErrCorruptTask signals an invariant violation in stored state, such as
// a running task without a provider task id. Never swallowed.
var ErrCorruptTask = errors.New("corrupt task state")

// ErrUnknownProvider is returned when a request names a provider variant
// no client is registered for.
var ErrUnknownProvider = errors.New("unknown provider")

// Terminal tasks report progress 1; percent values only appear while a
// task is mid-flight on a provider that exposes them.
const terminalProgress = 1

// TaskRepo is the task store contract the lifecycle consumes. The Mark*
// transitions are conditional on the current status and return
// repository.ErrStaleStatus when another caller advanced the task first.
type TaskRepo interface {
	CreateBatch(ctx context.Context, tasks []*models.Task) error
	GetByTaskNo(ctx context.Context, taskNo string) (*models.Task, error)
	GetByProviderTaskID(ctx context.Context, providerTaskID string) (*models.Task, error)
	MarkRunning(ctx context.Context, taskNo, providerTaskID string, startedAt time.Time) (*models.Task, error)
	MarkSucceeded(ctx context.Context, taskNo, resultURL string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error)
	MarkFailed(ctx context.Context, taskNo, failReason string, resultData json.RawMessage, completedAt time.Time) (*models.Task, error)
}

// CreditLedger debits the owning user at batch creation. Debits are
// final: there is no refund path for tasks that never resolve.
type CreditLedger interface {
	Debit(ctx context.Context, userID uuid.UUID, credits int) (*models.CreditConsumption, error)
}

// ObjectStorage uploads user photos and mirrors provider results.
type ObjectStorage interface {
	UploadPhoto(ctx context.Context, data []byte, ext string) (string, error)
	MirrorResult(ctx context.Context, srcURL, taskNo string) (string, error)
}

// ScheduleAdvanceFunc enqueues a background advance of the task at the
// given time. Background advancement is an accelerant only: client
// polling alone drives every task to a terminal state.
type ScheduleAdvanceFunc func(ctx context.Context, taskNo string, at time.Time) error

// TaskService is the task lifecycle manager: batch creation, dispatch,
// and poll/webhook-driven reconciliation.
type TaskService struct {
	repo        TaskRepo
	ledger      CreditLedger
	bucket      ObjectStorage
	providers   map[models.Provider]providers.Client
	schedule    ScheduleAdvanceFunc
	callbackURL string
	logger      *slog.Logger
}

// NewTaskService wires the lifecycle manager. callbackURL, when set, is
// attached to every provider payload so the provider can push webhook
// updates; empty disables callbacks (local dev).
func NewTaskService(
	repo TaskRepo,
	ledger CreditLedger,
	bucket ObjectStorage,
	providerClients map[models.Provider]providers.Client,
	schedule ScheduleAdvanceFunc,
	callbackURL string,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		repo:        repo,
		ledger:      ledger,
		bucket:      bucket,
		providers:   providerClients,
		schedule:    schedule,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// StyleSelection is one requested hairstyle. Cover, when present, is a
// reference image the provider receives as an extra attachment.
type StyleSelection struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Cover string `json:"cover,omitempty"`
}

// ColorSelection is the optional hair color. Value is the hex code; an
// empty Value means "keep the person's color".
type ColorSelection struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Cover string `json:"cover,omitempty"`
}

type CreateHairstyleRequest struct {
	Photo      []byte
	PhotoExt   string
	Hairstyles []StyleSelection
	HairColor  ColorSelection
	Detail     string
	Provider   models.Provider
}

// TaskResult is the caller-visible projection of a task.
type TaskResult struct {
	TaskNo         string          `json:"task_no"`
	ProviderTaskID string          `json:"provider_task_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Status         string          `json:"status"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Aspect         string          `json:"aspect"`
	ResultURL      string          `json:"result_url,omitempty"`
	FailReason     string          `json:"fail_reason,omitempty"`
	Ext            json.RawMessage `json:"ext,omitempty"`
}

// ToTaskResult projects a stored task for API responses.
func ToTaskResult(t *models.Task) TaskResult {
	return TaskResult{
		TaskNo:         t.TaskNo,
		ProviderTaskID: t.ProviderTaskID,
		CreatedAt:      t.CreatedAt,
		Status:         t.Status,
		CompletedAt:    t.CompletedAt,
		Aspect:         t.Aspect,
		ResultURL:      t.ResultURL,
		FailReason:     t.FailReason,
		Ext:            t.Ext,
	}
}

type CreateHairstyleResult struct {
	Tasks       []TaskResult              `json:"tasks"`
	Consumption *models.CreditConsumption `json:"consumption"`
}

// AdvanceResult pairs the task projection with its progress value.
type AdvanceResult struct {
	Task     TaskResult `json:"task"`
	Progress int        `json:"progress"`
}

// CreateHairstyleBatch debits the user (1 credit per style), uploads the
// photo once, and persists one pending task per requested style. The
// debit happens before any write: on insufficient credits nothing else
// runs. Dispatch is deferred to the first Advance call.
func (s *TaskService) CreateHairstyleBatch(ctx context.Context, req CreateHairstyleRequest, user *models.User) (*CreateHairstyleResult, error) {
	if len(req.Hairstyles) == 0 {
		return nil, fmt.Errorf("%w: no hairstyles selected", ErrInvalidReference)
	}
	if _, ok := s.providers[req.Provider]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}

	consumption, err := s.ledger.Debit(ctx, user.ID, len(req.Hairstyles))
	if err != nil {
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	photoURL, err := s.bucket.UploadPhoto(ctx, req.Photo, req.PhotoExt)
	if err != nil {
		return nil, fmt.Errorf("upload photo: %w", err)
	}

	now := time.Now().UTC()
	tasks := make([]*models.Task, 0, len(req.Hairstyles))
	for _, style := range req.Hairstyles {
		task, err := s.buildTask(req, style, photoURL, user.ID, now)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := s.repo.CreateBatch(ctx, tasks); err != nil {
		return nil, fmt.Errorf("persist task batch: %w", err)
	}

	if s.schedule != nil {
		for _, t := range tasks {
			if err := s.schedule(ctx, t.TaskNo, t.EstimatedStartAt); err != nil {
				s.logger.Warn("advance job scheduling failed, polling will drive the task",
					"task_no", t.TaskNo, "error", err)
			}
		}
	}

	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = ToTaskResult(t)
	}
	return &CreateHairstyleResult{Tasks: results, Consumption: consumption}, nil
}

// buildTask captures the exact provider payload at creation time so
// dispatch is replayable.
func (s *TaskService) buildTask(req CreateHairstyleRequest, style StyleSelection, photoURL string, userID uuid.UUID, now time.Time) (*models.Task, error) {
	inputParams, err := json.Marshal(map[string]any{
		"photo":      photoURL,
		"hairstyle":  style,
		"hair_color": req.HairColor,
		"detail":     req.Detail,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal input params: %w", err)
	}

	ext := map[string]string{"hairstyle": style.Name}
	if req.HairColor.Value != "" {
		ext["haircolor"] = req.HairColor.Name
	}
	extJSON, err := json.Marshal(ext)
	if err != nil {
		return nil, fmt.Errorf("marshal ext: %w", err)
	}

	var aspect string
	var requestParam any
	switch req.Provider {
	case models.ProviderKie4o:
		aspect = models.Aspect4o
		// Attachment order is positional: photo, style cover, color cover.
		filesURL := []string{photoURL}
		if style.Cover != "" {
			filesURL = append(filesURL, style.Cover)
		}
		if req.HairColor.Cover != "" {
			filesURL = append(filesURL, req.HairColor.Cover)
		}
		requestParam = kie.Create4oTaskOptions{
			FilesURL: filesURL,
			Prompt: prompt.FourO(prompt.FourOOptions{
				Hairstyle:          style.Name,
				Haircolor:          req.HairColor.Name,
				HaircolorHex:       req.HairColor.Value,
				WithStyleReference: style.Cover != "",
				WithColorReference: req.HairColor.Cover != "",
				Detail:             req.Detail,
			}),
			Size:        aspect,
			NVariants:   "1",
			CallBackURL: s.callbackURL,
		}
	case models.ProviderKieKontext:
		aspect = models.AspectKontext
		requestParam = kie.CreateKontextOptions{
			Prompt: prompt.Kontext(prompt.KontextOptions{
				Hairstyle: style.Name,
				Haircolor: req.HairColor.Name,
				Detail:    req.Detail,
			}),
			InputImage:   photoURL,
			AspectRatio:  aspect,
			Model:        "flux-kontext-pro",
			OutputFormat: "png",
			CallBackURL:  s.callbackURL,
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}

	paramJSON, err := json.Marshal(requestParam)
	if err != nil {
		return nil, fmt.Errorf("marshal request param: %w", err)
	}

	return &models.Task{
		TaskNo:           uuid.NewString(),
		UserID:           userID,
		Provider:         req.Provider,
		Status:           models.TaskStatusPending,
		Aspect:           aspect,
		EstimatedStartAt: now,
		RequestParam:     paramJSON,
		InputParams:      inputParams,
		Ext:              extJSON,
	}, nil
}

// Advance drives the task state machine one step. Safe to call
// repeatedly from a polling client or a webhook; terminal tasks are a
// pure read.
func (s *TaskService) Advance(ctx context.Context, taskNo string) (*AdvanceResult, error) {
	task, err := s.repo.GetByTaskNo(ctx, taskNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: task %q", ErrInvalidReference, taskNo)
		}
		return nil, fmt.Errorf("load task %q: %w", taskNo, err)
	}
	return s.advance(ctx, task)
}

// AdvanceByProviderID is the webhook entry point. It rejects unknown
// provider ids and tasks that are not currently running, so replayed or
// late webhooks cannot touch settled state.
func (s *TaskService) AdvanceByProviderID(ctx context.Context, providerTaskID string) (*AdvanceResult, error) {
	task, err := s.repo.GetByProviderTaskID(ctx, providerTaskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: provider task %q", ErrInvalidReference, providerTaskID)
		}
		return nil, fmt.Errorf("load task by provider id %q: %w", providerTaskID, err)
	}
	if task.Status != models.TaskStatusRunning {
		return nil, fmt.Errorf("%w: provider task %q is %s", ErrInvalidReference, providerTaskID, task.Status)
	}
	return s.advance(ctx, task)
}

func (s *TaskService) advance(ctx context.Context, task *models.Task) (*AdvanceResult, error) {
	switch task.Status {
	case models.TaskStatusPending:
		return s.advancePending(ctx, task)
	case models.TaskStatusRunning:
		return s.advanceRunning(ctx, task)
	default:
		// Terminal: no writes, no provider calls.
		return &AdvanceResult{Task: ToTaskResult(task), Progress: terminalProgress}, nil
	}
}

// advancePending attempts dispatch. Failures are soft: the task stays
// pending and the next Advance call retries — there is no internal
// retry loop.
func (s *TaskService) advancePending(ctx context.Context, task *models.Task) (*AdvanceResult, error) {
	updated, err := s.dispatch(ctx, task)
	if err != nil {
		s.logger.Warn("task dispatch deferred",
			"task_no", task.TaskNo, "provider", task.Provider, "error", err)
		return &AdvanceResult{Task: ToTaskResult(task), Progress: 0}, nil
	}
	return &AdvanceResult{Task: ToTaskResult(updated), Progress: 0}, nil
}

func (s *TaskService) dispatch(ctx context.Context, task *models.Task) (*models.Task, error) {
	if time.Now().Before(task.EstimatedStartAt) {
		return nil, fmt.Errorf("task %q not due until %s", task.TaskNo, task.EstimatedStartAt)
	}
	client, ok := s.providers[task.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, task.Provider)
	}

	providerTaskID, err := client.Dispatch(ctx, task.RequestParam)
	if err != nil {
		return nil, fmt.Errorf("dispatch to %s: %w", task.Provider, err)
	}

	updated, err := s.repo.MarkRunning(ctx, task.TaskNo, providerTaskID, time.Now().UTC())
	if errors.Is(err, repository.ErrStaleStatus) {
		// Lost the dispatch race; the winner's transition stands.
		return s.repo.GetByTaskNo(ctx, task.TaskNo)
	}
	if err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	return updated, nil
}

// advanceRunning polls the provider and reconciles the result. Provider
// or network failures degrade to "still running" instead of surfacing
// to the poller.
func (s *TaskService) advanceRunning(ctx context.Context, task *models.Task) (*AdvanceResult, error) {
	if task.ProviderTaskID == "" {
		return nil, fmt.Errorf("%w: task %q running without provider task id", ErrCorruptTask, task.TaskNo)
	}
	client, ok := s.providers[task.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: task %q bound to %q", ErrCorruptTask, task.TaskNo, task.Provider)
	}

	status, err := client.Poll(ctx, task.ProviderTaskID)
	if err != nil {
		s.logger.Warn("provider poll failed",
			"task_no", task.TaskNo, "provider", task.Provider, "error", err)
		return &AdvanceResult{Task: ToTaskResult(task), Progress: 0}, nil
	}

	now := time.Now().UTC()
	switch status.State {
	case providers.StateRunning:
		return &AdvanceResult{Task: ToTaskResult(task), Progress: status.Progress}, nil

	case providers.StateSucceeded:
		if status.ResultURL == "" {
			// A success response without an artifact is a terminal
			// provider defect, not a transient condition.
			return s.settle(ctx, task, func() (*models.Task, error) {
				return s.repo.MarkFailed(ctx, task.TaskNo, "Result url not retrieved", status.Raw, now)
			})
		}
		resultURL := status.ResultURL
		if mirrored, err := s.bucket.MirrorResult(ctx, resultURL, task.TaskNo); err != nil {
			s.logger.Warn("result re-hosting failed, keeping provider url",
				"task_no", task.TaskNo, "error", err)
		} else {
			resultURL = mirrored
		}
		return s.settle(ctx, task, func() (*models.Task, error) {
			return s.repo.MarkSucceeded(ctx, task.TaskNo, resultURL, status.Raw, now)
		})

	default:
		return s.settle(ctx, task, func() (*models.Task, error) {
			return s.repo.MarkFailed(ctx, task.TaskNo, status.Message, status.Raw, now)
		})
	}
}

// settle applies a terminal transition, degrading to the stored row when
// a concurrent caller settled the task first.
func (s *TaskService) settle(ctx context.Context, task *models.Task, mark func() (*models.Task, error)) (*AdvanceResult, error) {
	updated, err := mark()
	if errors.Is(err, repository.ErrStaleStatus) {
		fresh, err := s.repo.GetByTaskNo(ctx, task.TaskNo)
		if err != nil {
			return nil, fmt.Errorf("reload settled task %q: %w", task.TaskNo, err)
		}
		return &AdvanceResult{Task: ToTaskResult(fresh), Progress: terminalProgress}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settle task %q: %w", task.TaskNo, err)
	}
	return &AdvanceResult{Task: ToTaskResult(updated), Progress: terminalProgress}, nil
}
