package jobs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.IncJobsTotal(JobTypeBlobSweep, StatusSuccess)
		m.ObserveJobDuration(JobTypeBlobSweep, 0.2)
		m.IncJobErrors(JobTypeBlobSweep, "timeout")
		m.AddJobItems(JobTypeBlobSweep, 3)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}
		expected := map[string]bool{
			MetricBackgroundJobsTotal:      false,
			MetricBackgroundJobsDuration:   false,
			MetricBackgroundJobErrorsTotal: false,
			MetricBackgroundJobItemsTotal:  false,
		}
		for _, family := range families {
			if _, ok := expected[family.GetName()]; ok {
				expected[family.GetName()] = true
			}
		}
		for name, found := range expected {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestAddJobItems_IgnoresZero(t *testing.T) {
	m := NewMetrics()
	m.AddJobItems(JobTypeRateLimitCleanup, 0)
	if got := testutil.CollectAndCount(m.jobItems); got != 0 {
		t.Errorf("series = %d, want 0", got)
	}
	m.AddJobItems(JobTypeRateLimitCleanup, 4)
	if got := testutil.ToFloat64(m.jobItems.WithLabelValues(JobTypeRateLimitCleanup)); got != 4 {
		t.Errorf("items = %v, want 4", got)
	}
}
