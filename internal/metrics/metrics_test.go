package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration("initial", "success", 3*time.Second)
	m.ObserveGeneration("initial", "remote_error", 0)
	m.ObserveGeneration("", "invalid_request", 0)

	if got := testutil.ToFloat64(m.Generations.WithLabelValues("initial", "success")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.Generations.WithLabelValues("unknown", "invalid_request")); got != 1 {
		t.Errorf("Expected unknown mode label, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Uploads.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `studio_uploads_total{outcome="success"} 1`) {
		t.Errorf("Expected upload counter in output, got:\n%s", body)
	}
}

func TestIndependentRegistries(t *testing.T) {
	// two instances must not collide on registration
	New()
	New()
}
