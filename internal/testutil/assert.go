// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

// AssertEqual checks if two comparable values are equal
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertTrue checks if a condition is true
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Fatalf("assertion failed: %s", message)
	}
}

// AssertNoError fails the test when err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// MustMarshalJSON marshals an object to JSON or fails the test
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data or fails the test
func MustUnmarshalJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

// Envelope mirrors the JSON body written by pkg/utils/response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
	TraceID string          `json:"trace_id"`
}

// DecodeEnvelope decodes a recorded response body and, when data is non-nil,
// unmarshals the envelope data into it.
func DecodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Envelope {
	t.Helper()
	var env Envelope
	MustUnmarshalJSON(t, rec.Body.Bytes(), &env)
	if data != nil && len(env.Data) > 0 {
		MustUnmarshalJSON(t, env.Data, data)
	}
	return env
}
