package perf

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/visadesk/visadesk/internal/jobs"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/jobs"
)

type flakyPublisher struct {
	next  jobs.Publisher
	every int
	calls int
}

func (p *flakyPublisher) Publish(ctx context.Context, recipients []string, ev notify.Event) error {
	p.calls++
	if p.every > 0 && p.calls%p.every == 0 {
		return errors.New("redis timeout")
	}
	return p.next.Publish(ctx, recipients, ev)
}

func TestDispatchThroughputAndReliability(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	publisher := &flakyPublisher{next: notify.NewPublisher(client, "perf", slog.Default()), every: 25}
	handler := jobs.NewNotificationDispatchHandler(publisher, metrics, slog.Default())

	ctx := context.Background()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		ev := notify.NewEvent(notify.KindInfo, "application", "app-1", "Application app-1 updated", at)
		task, err := jobs.NewNotificationDispatchTask(jobs.NotificationDispatchPayload{
			Recipients: []string{"cust-1", "agent-1", "staff-1"},
			Event:      ev,
		})
		require.NoError(t, err)
		_ = handler.ProcessTask(ctx, task)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	success := metricValue(t, families, "visadesk_jobs_total", map[string]string{"job": jobs.TaskNotificationDispatch, "status": "success"})
	failure := metricValue(t, families, "visadesk_jobs_total", map[string]string{"job": jobs.TaskNotificationDispatch, "status": "failure"})
	require.Equal(t, 100.0, success+failure)
	require.GreaterOrEqual(t, success/(success+failure), 0.95)

	delivered := metricValue(t, families, "visadesk_notifications_published_total", map[string]string{"kind": "info"})
	require.Equal(t, success*3, delivered)

	mean := histogramMean(t, families, "visadesk_job_duration_seconds", map[string]string{"job": jobs.TaskNotificationDispatch})
	require.Less(t, mean, 0.25, "dispatch mean duration above budget")
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !hasLabels(metric, labels) {
				continue
			}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				return metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				return metric.GetGauge().GetValue()
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
			if !hasLabels(metric, labels) {
				continue
			}
			hist := metric.GetHistogram()
			if hist == nil || hist.GetSampleCount() == 0 {
				t.Fatalf("histogram %s has no samples", name)
			}
			return hist.GetSampleSum() / float64(hist.GetSampleCount())
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}
