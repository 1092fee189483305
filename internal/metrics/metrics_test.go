package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	rec.Request("api_get", "synthetic")
	rec.Request("api_get", "synthetic")
	rec.Request("navigation", "network")

	if got := testutil.ToFloat64(rec.requests.WithLabelValues("api_get", "synthetic")); got != 2 {
		t.Fatalf("expected 2 api_get/synthetic, got %v", got)
	}
	if got := testutil.ToFloat64(rec.requests.WithLabelValues("navigation", "network")); got != 1 {
		t.Fatalf("expected 1 navigation/network, got %v", got)
	}
}

func TestRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Request("default", "network")
	rec.WriteFailed("static-v1")
	rec.Precached(3)
	rec.Eviction(false)
	rec.Activation(true)
}
