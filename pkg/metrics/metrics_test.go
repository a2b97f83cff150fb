package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkOrderMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkOrderMetrics(reg)

	m.ObserveTransition("ASSIGNED", "IN_PROGRESS", SourceAssignment)
	m.ObserveTransition("", "PENDING", SourceLifecycle)
	m.ObserveCompletion(false)
	m.ObserveCompletion(true)
	m.IncNumbersIssued()
	m.IncNumbersIssued()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "work_order_status_transitions_total", map[string]string{
		"from": "ASSIGNED", "to": "IN_PROGRESS", "source": "assignment",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "work_order_status_transitions_total", map[string]string{"from": "none"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "assignment_completions_total", map[string]string{"outcome": "order_completed"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "work_order_numbers_issued_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestOutboxMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.ObserveDuration("work_order.created", 250*time.Millisecond)
	m.IncSuccess("work_order.created")
	m.IncFailure("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "outbox_publish_success_total", map[string]string{"event_type": "work_order.created"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "outbox_publish_failure_total", map[string]string{"event_type": "none"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "outbox_publish_duration_seconds")
	require.NotNil(t, mf)
	assert.Greater(t, mf.GetMetric()[0].GetHistogram().GetSampleSum(), 0.0)
}

func TestCronJobMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", 10*time.Millisecond, nil)
	m.ObserveRun("outbox-backlog", time.Millisecond, errors.New("db down"))
	m.ObserveRun("outbox-backlog", time.Millisecond, errors.New("db down"))
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "cron_job_runs_total", map[string]string{"job": "outbox-retention", "outcome": "success"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "cron_job_runs_total", map[string]string{"job": "outbox-backlog", "outcome": "failure"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "cron_cycles_skipped_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	require.Len(t, last.GetMetric(), 1)
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), 0.0)
}

func TestOutboxBacklogGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.SetBacklog(7, 2)
	m.SetBacklog(5, 1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	mf := findMetricFamily(mfs, "outbox_backlog_events")
	require.NotNil(t, mf)

	values := map[string]float64{}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == "state" {
				values[pair.GetValue()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"pending": 5, "terminal": 1}, values)
}

func TestNilRegistererIsNoop(t *testing.T) {
	var nilMetrics *WorkOrderMetrics
	nilMetrics.ObserveTransition("a", "b", "c")
	NewWorkOrderMetrics(nil).ObserveCompletion(true)
	NewOutboxMetrics(nil).IncSuccess("x")
	NewOutboxMetrics(nil).SetBacklog(1, 1)
	var nilCron *CronJobMetrics
	nilCron.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
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
