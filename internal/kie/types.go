package kie

import "encoding/json"

type createTaskResult struct {
	TaskID string `json:"taskId"`
}

// Create4oTaskOptions is the request body for gpt-4o image generation.
// filesUrl is consumed positionally by the provider: user photo first,
// then style reference, then color reference.
type Create4oTaskOptions struct {
	FilesURL    []string `json:"filesUrl,omitempty"`
	Prompt      string   `json:"prompt"`
	Size        string   `json:"size"`
	NVariants   string   `json:"nVariants,omitempty"`
	CallBackURL string   `json:"callBackUrl,omitempty"`
}

// 4o task status values.
const (
	FourOStatusGenerating = "GENERATING"
	FourOStatusSuccess    = "SUCCESS"
)

type FourOTask struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	Progress     string `json:"progress"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	CompleteTime string `json:"completeTime"`
	Response     *struct {
		ResultUrls []string `json:"resultUrls"`
	} `json:"response"`

	// Raw is the undecoded data payload, kept for diagnostics.
	Raw json.RawMessage `json:"-"`
}

// CreateKontextOptions is the request body for flux-kontext generation.
type CreateKontextOptions struct {
	Prompt       string `json:"prompt"`
	InputImage   string `json:"inputImage,omitempty"`
	AspectRatio  string `json:"aspectRatio,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
	Model        string `json:"model,omitempty"`
	CallBackURL  string `json:"callBackUrl,omitempty"`
}

// Kontext successFlag values: 0 generating, 1 success, anything else a
// terminal failure.
const (
	KontextFlagGenerating = 0
	KontextFlagSuccess    = 1
)

type KontextTask struct {
	TaskID       string `json:"taskId"`
	SuccessFlag  int    `json:"successFlag"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	CompleteTime string `json:"completeTime"`
	Response     *struct {
		OriginImageURL string `json:"originImageUrl"`
		ResultImageURL string `json:"resultImageUrl"`
	} `json:"response"`

	// Raw is the undecoded data payload, kept for diagnostics.
	Raw json.RawMessage `json:"-"`
}
