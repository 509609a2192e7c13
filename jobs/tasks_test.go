package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/visadesk/visadesk/internal/jobs"
	"github.com/visadesk/visadesk/internal/notify"
)

type fakePublisher struct {
	recipients []string
	event      notify.Event
	calls      int
	err        error
}

func (p *fakePublisher) Publish(_ context.Context, recipients []string, ev notify.Event) error {
	p.calls++
	p.recipients = recipients
	p.event = ev
	return p.err
}

func sampleEvent() notify.Event {
	return notify.NewEvent(notify.KindSuccess, "application", "a1", "Application a1 approved", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
}

func TestNotificationDispatchTaskRoundTrip(t *testing.T) {
	ev := sampleEvent()
	task, err := NewNotificationDispatchTask(NotificationDispatchPayload{Recipients: []string{"u1", "u2"}, Event: ev})
	require.NoError(t, err)
	assert.Equal(t, TaskNotificationDispatch, task.Type())

	pub := &fakePublisher{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	handler := NewNotificationDispatchHandler(pub, metrics, nil)
	require.NoError(t, handler(context.Background(), task))

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, []string{"u1", "u2"}, pub.recipients)
	assert.Equal(t, ev.ID, pub.event.ID)
}

func TestNotificationDispatchTaskRejectsInvalidEvent(t *testing.T) {
	_, err := NewNotificationDispatchTask(NotificationDispatchPayload{Recipients: []string{"u1"}, Event: notify.Event{ID: "x"}})
	assert.Error(t, err)
}

func TestNotificationDispatchHandlerSkipsMalformedPayloads(t *testing.T) {
	pub := &fakePublisher{}
	handler := NewNotificationDispatchHandler(pub, nil, nil)

	err := handler(context.Background(), asynq.NewTask(TaskNotificationDispatch, []byte("{")))
	assert.True(t, IsSkipRetry(err))

	body, err := json.Marshal(NotificationDispatchPayload{Recipients: []string{"u1"}, Event: notify.Event{ID: "x", Kind: "loud"}})
	require.NoError(t, err)
	err = handler(context.Background(), asynq.NewTask(TaskNotificationDispatch, body))
	assert.True(t, IsSkipRetry(err))
	assert.Zero(t, pub.calls)
}

func TestNotificationDispatchHandlerRetriesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	registry := prometheus.NewRegistry()
	handler := NewNotificationDispatchHandler(pub, jobmetrics.NewMetrics(registry), nil)
	task, err := NewNotificationDispatchTask(NotificationDispatchPayload{Recipients: []string{"u1"}, Event: sampleEvent()})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.False(t, IsSkipRetry(err))

	count, err := testutil.GatherAndCount(registry, "visadesk_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "inline", inspector: nil, status: http.StatusOK},
		{name: "queue", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "down", inspector: fakeInspector{err: errors.New("no redis")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}
