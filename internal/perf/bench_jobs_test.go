package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/sunlease/portal/internal/jobs"
	"github.com/sunlease/portal/jobs"
)

func TestPortalJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	for i := 0; i < 40; i++ {
		tracker := metrics.Track(jobs.TaskPermissionsWarm)
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending warm tracker: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		tracker := metrics.Track(jobs.TaskSessionPurge)
		time.Sleep(5 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending purge tracker: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		tracker := metrics.Track(jobs.TaskPermissionsWarm)
		if err := tracker.End(errors.New("redis timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "portal_jobs_total", map[string]string{"job": jobs.TaskPermissionsWarm, "status": "success"})
	failure := metricValue(t, families, "portal_jobs_total", map[string]string{"job": jobs.TaskPermissionsWarm, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("warm job success ratio too low: %f", ratio)
	}
	if failures := metricValue(t, families, "portal_jobs_failures_total", map[string]string{"job": jobs.TaskPermissionsWarm}); failures != 2 {
		t.Fatalf("expected 2 failures, got %f", failures)
	}
	if last := metricValue(t, families, "portal_job_last_success_timestamp_seconds", map[string]string{"job": jobs.TaskSessionPurge}); last <= 0 {
		t.Fatal("last success timestamp not recorded")
	}

	if purgeDuration := histogramMean(t, families, "portal_job_duration_seconds", map[string]string{"job": jobs.TaskSessionPurge}); purgeDuration > 0.5 {
		t.Fatalf("purge duration above budget: %f", purgeDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
