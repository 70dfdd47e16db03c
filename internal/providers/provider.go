// Package providers normalizes the bespoke response shapes of each
// generation backend onto one three-way status, so the task lifecycle
// stays provider-agnostic.
package providers

import (
	"context"
	"encoding/json"
)

type State int

const (
	StateRunning State = iota
	StateSucceeded
	StateFailed
)

// Status is the normalized poll result. Progress is an integer percent
// with provider-native fidelity: a provider that only exposes a binary
// done flag reports 0 until it is done.
type Status struct {
	State     State
	Progress  int
	ResultURL string
	Message   string

	// Raw is the provider's undecoded response, persisted on the task
	// as result_data.
	Raw json.RawMessage
}

// Client is the uniform contract each generation backend implements.
type Client interface {
	// Dispatch submits the captured request payload and returns the
	// provider-assigned task id.
	Dispatch(ctx context.Context, requestParam json.RawMessage) (string, error)
	// Poll reports the current provider-side state of a dispatched task.
	Poll(ctx context.Context, providerTaskID string) (Status, error)
}
