// Package kie is a minimal client for the KIE AI image generation API.
// The API speaks JSON over HTTPS with a bearer access key; every
// response carries an application-level status code inside the payload,
// distinct from the transport status.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://kieai.erweima.ai"

	requestTimeout = 30 * time.Second
)

// APIError is a provider-level failure: a non-2xx transport status or an
// application code other than 200 embedded in a 200 response body.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kie: code %d: %s", e.Code, e.Message)
}

// Config carries the provider credentials and endpoint. Passed in
// explicitly at construction; the client never reads the environment.
type Config struct {
	BaseURL   string
	AccessKey string
}

type Client struct {
	baseURL    *url.URL
	accessKey  string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Client{
		baseURL:    u,
		accessKey:  cfg.AccessKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// envelope is the uniform KIE response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call performs one API request and returns the data payload. GET
// serializes params into the query string; other methods send the body
// as JSON.
func (c *Client) call(ctx context.Context, method, path string, params map[string]string, body any) (json.RawMessage, error) {
	u := *c.baseURL
	u.Path = path
	if method == http.MethodGet && len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var reqBody []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = data
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Code: resp.StatusCode, Message: resp.Status}
		}
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		msg := env.Msg
		if msg == "" {
			msg = resp.Status
		}
		return nil, &APIError{Code: code, Message: msg}
	}

	return env.Data, nil
}

// Create4oTask submits a gpt-4o image generation request. The payload is
// the exact request_param captured on the task at creation time.
func (c *Client) Create4oTask(ctx context.Context, payload json.RawMessage) (string, error) {
	data, err := c.call(ctx, http.MethodPost, "/api/v1/gpt4o-image/generate", nil, payload)
	if err != nil {
		return "", err
	}
	var result createTaskResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode create result: %w", err)
	}
	return result.TaskID, nil
}

// Query4oTask fetches the state of a gpt-4o task. Raw on the returned
// value holds the undecoded data payload for diagnostics.
func (c *Client) Query4oTask(ctx context.Context, taskID string) (*FourOTask, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/v1/gpt4o-image/record-info", map[string]string{"taskId": taskID}, nil)
	if err != nil {
		return nil, err
	}
	var task FourOTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode 4o task: %w", err)
	}
	task.Raw = data
	return &task, nil
}

// CreateKontextTask submits a flux-kontext generation request.
func (c *Client) CreateKontextTask(ctx context.Context, payload json.RawMessage) (string, error) {
	data, err := c.call(ctx, http.MethodPost, "/api/v1/flux/kontext/generate", nil, payload)
	if err != nil {
		return "", err
	}
	var result createTaskResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode create result: %w", err)
	}
	return result.TaskID, nil
}

// QueryKontextTask fetches the state of a flux-kontext task.
func (c *Client) QueryKontextTask(ctx context.Context, taskID string) (*KontextTask, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/v1/flux/kontext/record-info", map[string]string{"taskId": taskID}, nil)
	if err != nil {
		return nil, err
	}
	var task KontextTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode kontext task: %w", err)
	}
	task.Raw = data
	return &task, nil
}

// CreditsRemaining reports the credit balance left on the KIE account.
func (c *Client) CreditsRemaining(ctx context.Context) (int, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/v1/chat/credit", nil, nil)
	if err != nil {
		return 0, err
	}
	var credits int
	if err := json.Unmarshal(data, &credits); err != nil {
		return 0, fmt.Errorf("decode credits: %w", err)
	}
	return credits, nil
}
