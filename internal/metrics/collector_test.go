package metrics

import (
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHistogramHasInfBucket(t *testing.T) {
	h := Collector.Histogram("uewatch_test_duration_seconds", "Test histogram", "", []float64{0.001, 0.01})
	h.Observe(0.0005)
	h.Observe(0.005)
	h.Observe(42) // beyond every finite bucket

	rec := httptest.NewRecorder()
	Collector.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)

	var infLine string
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, `uewatch_test_duration_seconds_bucket{le="+Inf"}`) {
			infLine = line
		}
	}
	if infLine == "" {
		t.Fatalf("no +Inf bucket rendered:\n%s", body)
	}
	if !strings.HasSuffix(infLine, " 3") {
		t.Errorf("+Inf bucket should count all observations, got %q", infLine)
	}
}

func TestHistogramKeepsCallerInfBucket(t *testing.T) {
	h := Collector.Histogram("uewatch_test_explicit_inf_seconds", "Test histogram", "", []float64{1, math.Inf(1)})
	h.Observe(2)

	if got := len(h.buckets); got != 2 {
		t.Fatalf("expected 2 buckets, got %d", got)
	}
	if h.buckets[1].count != 1 {
		t.Errorf("+Inf bucket count = %d, want 1", h.buckets[1].count)
	}
}
