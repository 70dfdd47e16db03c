package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/newdo/backend/internal/ledger"
	"github.com/newdo/backend/internal/middleware"
	"github.com/newdo/backend/internal/models"
	"github.com/newdo/backend/internal/services"
)

// Uploaded photos are capped at 16 MiB.
const maxPhotoBytes = 16 << 20

// TaskLifecycle is the subset of the lifecycle manager the handler needs.
type TaskLifecycle interface {
	CreateHairstyleBatch(ctx context.Context, req services.CreateHairstyleRequest, user *models.User) (*services.CreateHairstyleResult, error)
	Advance(ctx context.Context, taskNo string) (*services.AdvanceResult, error)
	AdvanceByProviderID(ctx context.Context, providerTaskID string) (*services.AdvanceResult, error)
}

// TaskLister reads a user's task history.
type TaskLister interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
}

// RequestValidator checks request documents against named schemas.
type RequestValidator interface {
	Validate(ctx context.Context, name string, doc json.RawMessage) error
}

// TaskHandler serves the hairstyle task endpoints.
type TaskHandler struct {
	Lifecycle TaskLifecycle
	Tasks     TaskLister
	Validator RequestValidator
	Logger    *slog.Logger
}

// --- POST /api/v1/hairstyle ---

// createHairstyleMeta is the non-file portion of the multipart request,
// reassembled for schema validation.
type createHairstyleMeta struct {
	Hairstyle json.RawMessage `json:"hairstyle"`
	HairColor json.RawMessage `json:"hair_color,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Type      string          `json:"type"`
}

// CreateHairstyle handles POST /api/v1/hairstyle.
// Multipart fields: photo (file), hairstyle (JSON array), hair_color
// (JSON object, optional), detail, type.
func (h *TaskHandler) CreateHairstyle(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, `{"error":"photo is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()
	photo, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		http.Error(w, `{"error":"failed to read photo"}`, http.StatusBadRequest)
		return
	}
	if len(photo) == 0 || len(photo) > maxPhotoBytes {
		http.Error(w, `{"error":"photo is empty or too large"}`, http.StatusBadRequest)
		return
	}

	meta := createHairstyleMeta{
		Detail: r.FormValue("detail"),
		Type:   r.FormValue("type"),
	}
	if v := r.FormValue("hairstyle"); v != "" {
		meta.Hairstyle = json.RawMessage(v)
	}
	if v := r.FormValue("hair_color"); v != "" {
		meta.HairColor = json.RawMessage(v)
	}

	doc, err := json.Marshal(meta)
	if err != nil {
		http.Error(w, `{"error":"invalid request fields"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.Validate(r.Context(), "hairstyle_request", doc); err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("validate create request", "error", err)
		http.Error(w, `{"error":"request validation failed"}`, http.StatusBadRequest)
		return
	}

	var hairstyles []services.StyleSelection
	if err := json.Unmarshal(meta.Hairstyle, &hairstyles); err != nil {
		http.Error(w, `{"error":"invalid hairstyle field"}`, http.StatusBadRequest)
		return
	}
	var hairColor services.ColorSelection
	if len(meta.HairColor) > 0 {
		if err := json.Unmarshal(meta.HairColor, &hairColor); err != nil {
			http.Error(w, `{"error":"invalid hair_color field"}`, http.StatusBadRequest)
			return
		}
	}

	req := services.CreateHairstyleRequest{
		Photo:      photo,
		PhotoExt:   photoExt(header.Filename),
		Hairstyles: hairstyles,
		HairColor:  hairColor,
		Detail:     meta.Detail,
		Provider:   models.Provider(meta.Type),
	}

	result, err := h.Lifecycle.CreateHairstyleBatch(r.Context(), req, user)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCredits):
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
		case errors.Is(err, services.ErrUnknownProvider):
			http.Error(w, `{"error":"unknown provider type"}`, http.StatusBadRequest)
		default:
			h.Logger.Error("create hairstyle batch", "user_id", user.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// --- GET /api/v1/tasks/{task_no} ---

// GetTask handles GET /api/v1/tasks/{task_no}. Each read advances the
// task: pending tasks get dispatched, running tasks get polled, terminal
// tasks are returned as-is.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskNo := r.PathValue("task_no")
	if taskNo == "" {
		http.Error(w, `{"error":"task_no is required"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Lifecycle.Advance(r.Context(), taskNo)
	if err != nil {
		if errors.Is(err, services.ErrInvalidReference) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("advance task", "task_no", taskNo, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- GET /api/v1/tasks ---

// ListTasks handles GET /api/v1/tasks, returning the caller's task
// history newest first. A pure read: no dispatch, no polling.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	tasks, err := h.Tasks.ListByUserID(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list tasks", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	results := make([]services.TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = services.ToTaskResult(t)
	}
	writeJSON(w, http.StatusOK, results)
}

// --- POST /webhooks/kie-image ---

type kieCallbackRequest struct {
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// KieWebhook handles the provider's push callback. It always answers
// 200 with an empty object: the callback is an accelerant, and any
// reconciliation failure is recovered by the next poll.
func (h *TaskHandler) KieWebhook(w http.ResponseWriter, r *http.Request) {
	var req kieCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data.TaskID == "" {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	if _, err := h.Lifecycle.AdvanceByProviderID(r.Context(), req.Data.TaskID); err != nil {
		h.Logger.Warn("webhook reconciliation skipped",
			"provider_task_id", req.Data.TaskID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}

// --- helpers ---

func photoExt(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "png"
	}
	return strings.ToLower(ext)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
