package providers

import (
	"context"
	"encoding/json"

	"github.com/newdo/backend/internal/kie"
)

// Kontext drives flux-kontext generation through the KIE API. The
// provider exposes only a binary done flag, so progress stays 0 while
// running; that degraded fidelity is deliberate and preserved.
type Kontext struct {
	kie *kie.Client
}

func NewKontext(client *kie.Client) *Kontext {
	return &Kontext{kie: client}
}

func (p *Kontext) Dispatch(ctx context.Context, requestParam json.RawMessage) (string, error) {
	return p.kie.CreateKontextTask(ctx, requestParam)
}

func (p *Kontext) Poll(ctx context.Context, providerTaskID string) (Status, error) {
	task, err := p.kie.QueryKontextTask(ctx, providerTaskID)
	if err != nil {
		return Status{}, err
	}

	switch task.SuccessFlag {
	case kie.KontextFlagGenerating:
		return Status{State: StateRunning, Progress: 0, Raw: task.Raw}, nil
	case kie.KontextFlagSuccess:
		var resultURL string
		if task.Response != nil {
			resultURL = task.Response.ResultImageURL
			if resultURL == "" {
				resultURL = task.Response.OriginImageURL
			}
		}
		return Status{State: StateSucceeded, Progress: 100, ResultURL: resultURL, Raw: task.Raw}, nil
	default:
		return Status{State: StateFailed, Message: task.ErrorMessage, Raw: task.Raw}, nil
	}
}
