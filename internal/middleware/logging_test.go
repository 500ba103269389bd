package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestLoggingSuccess(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"cs_1"}`))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/checkout_sessions", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
	if entry["method"] != "POST" || entry["path"] != "/checkout_sessions" {
		t.Errorf("entry = %v, want method/path fields", entry)
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if entry["size"] != float64(len(`{"id":"cs_1"}`)) {
		t.Errorf("size = %v, want body length", entry["size"])
	}
}

func TestLoggingErrorCode(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "not_found")
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/checkout_sessions/cs_missing", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for 4xx", entry["level"])
	}
	if entry["error_code"] != "not_found" {
		t.Errorf("error_code = %v, want not_found", entry["error_code"])
	}
}

func TestLoggingServerErrorLevel(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("log entry = %s, want ERROR level for 5xx", buf.String())
	}
}

func TestLoggingIncludesRequestID(t *testing.T) {
	logger, buf := captureLogger()

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("log entry = %s, want request_id", buf.String())
	}
}

func TestSetErrorCodeWithoutHolder(t *testing.T) {
	// Must not panic when the logging middleware is absent.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	SetErrorCode(req.Context(), "conflict")
	if got := GetErrorCode(req.Context()); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty without holder", got)
	}
}
