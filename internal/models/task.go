package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task status enums. Transitions are forward-only:
// pending -> running -> succeeded | failed.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
)

// Provider identifies which generation backend a task is bound to.
// The set is closed; adding a provider means adding a constant and
// registering a client for it, never branching on free-form strings.
type Provider string

const (
	ProviderKie4o      Provider = "kie_4o"
	ProviderKieKontext Provider = "kie_kontext"
)

// Aspect ratios are fixed per provider and never change after creation.
const (
	Aspect4o      = "2:3"
	AspectKontext = "3:4"
)

type Task struct {
	TaskNo           string          `json:"task_no"`
	UserID           uuid.UUID       `json:"user_id"`
	Provider         Provider        `json:"provider"`
	ProviderTaskID   string          `json:"provider_task_id,omitempty"`
	Status           string          `json:"status"`
	Aspect           string          `json:"aspect"`
	EstimatedStartAt time.Time       `json:"estimated_start_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	RequestParam     json.RawMessage `json:"request_param,omitempty"`
	InputParams      json.RawMessage `json:"input_params,omitempty"`
	Ext              json.RawMessage `json:"ext,omitempty"`
	ResultURL        string          `json:"result_url,omitempty"`
	ResultData       json.RawMessage `json:"result_data,omitempty"`
	FailReason       string          `json:"fail_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusSucceeded || t.Status == TaskStatusFailed
}
