package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/checkout_sessions", want: "/checkout_sessions"},
		{path: "/checkout_sessions/cs_123", want: "/checkout_sessions/{id}"},
		{path: "/checkout_sessions/cs_123/complete", want: "/checkout_sessions/{id}/complete"},
		{path: "/checkout_sessions/cs_123/cancel", want: "/checkout_sessions/{id}/cancel"},
		{path: "/stripe/webhook", want: "/stripe/webhook"},
		{path: "/health", want: "/health"},
		{path: "/metrics", want: "/metrics"},
		{path: "/unknown/route", want: "/unknown/route"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			return fam.GetMetric()
		}
	}
	return nil
}

func TestHTTPMetricsRecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/checkout_sessions/cs_9", nil))

	samples := gatherCounter(t, reg, MetricHTTPRequestsTotal)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	var path string
	for _, label := range samples[0].GetLabel() {
		if label.GetName() == "path" {
			path = label.GetValue()
		}
	}
	if path != "/checkout_sessions/{id}" {
		t.Errorf("path label = %q, want normalized /checkout_sessions/{id}", path)
	}
	if got := samples[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("counter = %v, want 1", got)
	}
}

func TestHTTPMetricsExcludesHealth(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if samples := gatherCounter(t, reg, MetricHTTPRequestsTotal); len(samples) != 0 {
		t.Errorf("got %d samples for health endpoints, want 0", len(samples))
	}
}
