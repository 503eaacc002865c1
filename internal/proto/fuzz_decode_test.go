package proto

import (
	"bytes"
	"testing"

	"github.com/zelara-ai/app-mobile/internal/testutil"
)

func FuzzReadFrame(f *testing.F) {
	f.Add([]byte{0, 0, 0, 1, '{'})
	f.Add([]byte{0, 0, 0, 2, '{', '}'})
	f.Fuzz(func(t *testing.T, data []byte) {
		data = testutil.CapBytes(data, testutil.DefaultMaxFuzzBytes)
		testutil.WithTimeout(t, testutil.DefaultFuzzTimeout, func() {
			_, _ = ReadFrame(bytes.NewReader(data))
		})
	})
}

func FuzzDecodeTaskResponse(f *testing.F) {
	f.Add([]byte(`{"taskId":"t-1","success":true,"result":{"total":3},"timestamp":"2026-01-01T00:00:00Z"}`))
	f.Add([]byte(`{"taskId":"t-2","success":false,"result":{"error":"no"}}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		data = testutil.CapBytes(data, testutil.DefaultMaxFuzzBytes)
		testutil.WithTimeout(t, testutil.DefaultFuzzTimeout, func() {
			m, err := DecodeTaskResponse(data)
			if err == nil {
				_ = m.ResultError()
				_, _ = EncodeTaskResponse(m)
			}
		})
	})
}

func FuzzDecodeTaskRequest(f *testing.F) {
	f.Add([]byte(`{"taskId":"t-1","taskType":"image_validation","payload":{"token":"x"}}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		data = testutil.CapBytes(data, testutil.DefaultMaxFuzzBytes)
		testutil.WithTimeout(t, testutil.DefaultFuzzTimeout, func() {
			m, err := DecodeTaskRequest(data)
			if err == nil {
				_, _ = EncodeTaskRequest(m)
			}
		})
	})
}
