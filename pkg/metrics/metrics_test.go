package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallMetricsExistAndIncrement(t *testing.T) {
	// Use a test label to avoid colliding with other tests
	lbl := "test-target"

	CallAttempts.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(CallAttempts.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected CallAttempts >= 1, got %v", v)
	}

	CallRetries.WithLabelValues(lbl).Add(2)
	if v := testutil.ToFloat64(CallRetries.WithLabelValues(lbl)); v < 2 {
		t.Fatalf("expected CallRetries >= 2, got %v", v)
	}

	CallsExhausted.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(CallsExhausted.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected CallsExhausted >= 1, got %v", v)
	}
}

func TestClientCacheMetricsExistAndIncrement(t *testing.T) {
	lbl := "test-cluster"

	ClientCacheHits.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(ClientCacheHits.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected ClientCacheHits >= 1, got %v", v)
	}

	ClientCacheMisses.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(ClientCacheMisses.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected ClientCacheMisses >= 1, got %v", v)
	}

	ClientCacheEvictions.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(ClientCacheEvictions.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected ClientCacheEvictions >= 1, got %v", v)
	}
}

func TestMetricsHandler(t *testing.T) {
	if MetricsHandler() == nil {
		t.Fatal("expected a non-nil metrics handler")
	}
}
