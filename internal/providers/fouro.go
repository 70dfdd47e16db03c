package providers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/newdo/backend/internal/kie"
)

// FourO drives gpt-4o image generation through the KIE API. It is the
// only variant that reports numeric mid-flight progress.
type FourO struct {
	kie *kie.Client
}

func NewFourO(client *kie.Client) *FourO {
	return &FourO{kie: client}
}

func (p *FourO) Dispatch(ctx context.Context, requestParam json.RawMessage) (string, error) {
	return p.kie.Create4oTask(ctx, requestParam)
}

func (p *FourO) Poll(ctx context.Context, providerTaskID string) (Status, error) {
	task, err := p.kie.Query4oTask(ctx, providerTaskID)
	if err != nil {
		return Status{}, err
	}

	switch task.Status {
	case kie.FourOStatusGenerating:
		return Status{State: StateRunning, Progress: parseProgress(task.Progress), Raw: task.Raw}, nil
	case kie.FourOStatusSuccess:
		var resultURL string
		if task.Response != nil && len(task.Response.ResultUrls) > 0 {
			resultURL = task.Response.ResultUrls[0]
		}
		return Status{State: StateSucceeded, Progress: 100, ResultURL: resultURL, Raw: task.Raw}, nil
	default:
		return Status{State: StateFailed, Message: task.ErrorMessage, Raw: task.Raw}, nil
	}
}

// parseProgress maps the provider's progress string to an integer
// percent. The API has reported both percentages ("42") and fractions
// ("0.42"); both map to 42. Unparseable input degrades to 0.
func parseProgress(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	if f <= 1 {
		f *= 100
	}
	if f > 100 {
		f = 100
	}
	return int(f + 0.5)
}
