package proto

import (
	"bytes"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"taskId":"t-1","taskType":"counter_update"}`)
	frame, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	got, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(payload, got) {
		t.Fatalf("payload mismatch")
	}
}

func TestEncodeFrameRejectsEmpty(t *testing.T) {
	if _, err := EncodeFrame(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	frame := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := ReadFrame(bytes.NewReader(frame)); err == nil {
		t.Fatalf("expected error for oversize frame")
	}
}

func TestWriteFrameReadFrame(t *testing.T) {
	var buf bytes.Buffer
	req := NewTaskRequest("t-2", TaskImageValidation, map[string]any{"token": "tok"}, time.Unix(1700000000, 0))
	data, err := EncodeTaskRequest(req)
	if err != nil {
		t.Fatalf("EncodeTaskRequest failed: %v", err)
	}
	if err := WriteFrame(&buf, data); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	raw, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	got, err := DecodeTaskRequest(raw)
	if err != nil {
		t.Fatalf("DecodeTaskRequest failed: %v", err)
	}
	if got.TaskID != "t-2" || got.TaskType != TaskImageValidation {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Payload["token"] != "tok" {
		t.Fatalf("token not carried in payload")
	}
}

func TestTaskRequestRejectsMissingFields(t *testing.T) {
	if _, err := DecodeTaskRequest([]byte(`{"taskType":"counter_update"}`)); err == nil {
		t.Fatalf("expected error for missing taskId")
	}
	if _, err := DecodeTaskRequest([]byte(`{"taskId":"t-3"}`)); err == nil {
		t.Fatalf("expected error for missing taskType")
	}
}

func TestResponseResultError(t *testing.T) {
	resp := TaskResponse{TaskID: "t-4", Success: false, Result: ErrorResult("bad image")}
	if got := resp.ResultError(); got != "bad image" {
		t.Fatalf("expected carried error, got %q", got)
	}
	empty := TaskResponse{TaskID: "t-5", Success: false}
	if got := empty.ResultError(); got != "" {
		t.Fatalf("expected empty error, got %q", got)
	}
}

func TestResponseDecodeResult(t *testing.T) {
	resp := TaskResponse{TaskID: "t-6", Success: true, Result: []byte(`{"confidence":0.93,"message":"plastic bottle"}`)}
	var v ValidationResult
	if err := resp.DecodeResult(&v); err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if v.Confidence != 0.93 || v.Message != "plastic bottle" {
		t.Fatalf("unexpected result: %+v", v)
	}
}
