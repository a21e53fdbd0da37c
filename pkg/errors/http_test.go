package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NewNotFoundError("server group", "x"), http.StatusNotFound},
		{"config", NewConfigError("k", "bad"), http.StatusInternalServerError},
		{"network", NewNetworkError("h:1", errors.New("refused")), http.StatusServiceUnavailable},
		{"cache", NewBaseError(CodeCacheError, "bad pong", nil), http.StatusServiceUnavailable},
		{"sentinel timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.expected {
				t.Errorf("StatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWriteHTTPError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTPError(w, NewNotFoundError("server group", "missing"), "trace-1")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	var body HTTPError
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != CodeNotFound {
		t.Errorf("expected code %q, got %q", CodeNotFound, body.Code)
	}
	if body.Details["id"] != "missing" {
		t.Errorf("expected id detail, got %v", body.Details)
	}
	if body.TraceID != "trace-1" {
		t.Errorf("expected trace id, got %q", body.TraceID)
	}
}
