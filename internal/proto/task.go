package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task kinds understood by the desktop executor.
const (
	TaskImageValidation = "image_validation"
	TaskInversionTest   = "inversion_test"
	TaskCounterUpdate   = "counter_update"
)

// TaskRequest is one outbound envelope. Payload carries the bearer token under
// the "token" key for every payload-bearing kind; the executor correlates the
// eventual response by TaskID.
type TaskRequest struct {
	TaskID    string         `json:"taskId"`
	TaskType  string         `json:"taskType"`
	Payload   map[string]any `json:"payload"`
	Timestamp string         `json:"timestamp"`
}

// TaskResponse echoes the request's TaskID. Result shape depends on TaskType;
// on Success=false it is {"error": "..."} or equivalent.
type TaskResponse struct {
	TaskID    string          `json:"taskId"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type ValidationResult struct {
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
}

type InversionResult struct {
	InvertedImage string `json:"invertedImage"`
}

type CounterResult struct {
	Total int `json:"total"`
}

func NewTaskRequest(id, kind string, payload map[string]any, now time.Time) TaskRequest {
	return TaskRequest{
		TaskID:    id,
		TaskType:  kind,
		Payload:   payload,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func EncodeTaskRequest(m TaskRequest) ([]byte, error) {
	if m.TaskID == "" {
		return nil, fmt.Errorf("missing taskId")
	}
	if m.TaskType == "" {
		return nil, fmt.Errorf("missing taskType")
	}
	return json.Marshal(m)
}

func DecodeTaskRequest(data []byte) (TaskRequest, error) {
	var m TaskRequest
	if err := json.Unmarshal(data, &m); err != nil {
		return TaskRequest{}, err
	}
	if m.TaskID == "" {
		return TaskRequest{}, fmt.Errorf("missing taskId")
	}
	if m.TaskType == "" {
		return TaskRequest{}, fmt.Errorf("missing taskType")
	}
	return m, nil
}

func EncodeTaskResponse(m TaskResponse) ([]byte, error) {
	if m.TaskID == "" {
		return nil, fmt.Errorf("missing taskId")
	}
	return json.Marshal(m)
}

func DecodeTaskResponse(data []byte) (TaskResponse, error) {
	var m TaskResponse
	if err := json.Unmarshal(data, &m); err != nil {
		return TaskResponse{}, err
	}
	if m.TaskID == "" {
		return TaskResponse{}, fmt.Errorf("missing taskId")
	}
	return m, nil
}

// ResultError extracts the error description carried by a failed response.
// Returns "" when none is present.
func (m TaskResponse) ResultError() string {
	if len(m.Result) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(m.Result, &body); err != nil {
		return ""
	}
	return body.Error
}

func (m TaskResponse) DecodeResult(out any) error {
	if len(m.Result) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(m.Result, out)
}

func ErrorResult(msg string) json.RawMessage {
	raw, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	return raw
}
