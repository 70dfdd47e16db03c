package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newdo/backend/internal/kie"
)

// newKieServer serves canned data payloads per path, wrapped in the KIE
// envelope.
func newKieServer(t *testing.T, responses map[string]string) *kie.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := responses[r.URL.Path]
		if !ok {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":200,"msg":"success","data":%s}`, data)
	}))
	t.Cleanup(srv.Close)

	client, err := kie.NewClient(kie.Config{BaseURL: srv.URL, AccessKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFourOPoll_Generating(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/gpt4o-image/record-info": `{"taskId":"abc","status":"GENERATING","progress":"42"}`,
	})

	status, err := NewFourO(client).Poll(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.State != StateRunning {
		t.Fatalf("state = %v, want running", status.State)
	}
	if status.Progress != 42 {
		t.Errorf("progress = %d, want 42", status.Progress)
	}
}

func TestFourOPoll_Success(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/gpt4o-image/record-info": `{"taskId":"abc","status":"SUCCESS","progress":"1","response":{"resultUrls":["https://kie.test/r.png"]}}`,
	})

	status, err := NewFourO(client).Poll(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.State != StateSucceeded {
		t.Fatalf("state = %v, want succeeded", status.State)
	}
	if status.ResultURL != "https://kie.test/r.png" {
		t.Errorf("result url = %s", status.ResultURL)
	}
	if len(status.Raw) == 0 {
		t.Error("raw payload not captured")
	}
}

func TestFourOPoll_Failure(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/gpt4o-image/record-info": `{"taskId":"abc","status":"GENERATE_FAILED","errorMessage":"flagged"}`,
	})

	status, err := NewFourO(client).Poll(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.State != StateFailed {
		t.Fatalf("state = %v, want failed", status.State)
	}
	if status.Message != "flagged" {
		t.Errorf("message = %q", status.Message)
	}
}

func TestKontextPoll_Flags(t *testing.T) {
	tests := []struct {
		name string
		data string
		want State
	}{
		{"generating", `{"taskId":"k1","successFlag":0}`, StateRunning},
		{"success", `{"taskId":"k1","successFlag":1,"response":{"resultImageUrl":"https://kie.test/k.png"}}`, StateSucceeded},
		{"create failed", `{"taskId":"k1","successFlag":2,"errorMessage":"bad input"}`, StateFailed},
		{"generate failed", `{"taskId":"k1","successFlag":3,"errorMessage":"worker crash"}`, StateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newKieServer(t, map[string]string{
				"/api/v1/flux/kontext/record-info": tc.data,
			})
			status, err := NewKontext(client).Poll(context.Background(), "k1")
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if status.State != tc.want {
				t.Fatalf("state = %v, want %v", status.State, tc.want)
			}
		})
	}
}

func TestKontextPoll_RunningHasZeroProgress(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/flux/kontext/record-info": `{"taskId":"k1","successFlag":0}`,
	})
	status, err := NewKontext(client).Poll(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.Progress != 0 {
		t.Errorf("progress = %d, want 0 (binary-flag provider)", status.Progress)
	}
}

func TestKontextPoll_FallsBackToOriginImage(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/flux/kontext/record-info": `{"taskId":"k1","successFlag":1,"response":{"originImageUrl":"https://kie.test/o.png","resultImageUrl":""}}`,
	})
	status, err := NewKontext(client).Poll(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.ResultURL != "https://kie.test/o.png" {
		t.Errorf("result url = %s, want origin fallback", status.ResultURL)
	}
}

func TestDispatch_ReturnsProviderTaskID(t *testing.T) {
	client := newKieServer(t, map[string]string{
		"/api/v1/gpt4o-image/generate": `{"taskId":"task-123"}`,
	})

	id, err := NewFourO(client).Dispatch(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if id != "task-123" {
		t.Errorf("task id = %s", id)
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"42", 42},
		{"0.42", 42},
		{"1", 100},
		{"0", 0},
		{"100", 100},
		{"250", 100},
		{"-5", 0},
		{"garbage", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := parseProgress(tc.in); got != tc.want {
			t.Errorf("parseProgress(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
