package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visadesk/visadesk/internal/notify"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	channelStates   *prometheus.GaugeVec
	channelChanges  *prometheus.CounterVec
	delivered       *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visadesk_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visadesk_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	states := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "visadesk_notify_channels",
		Help: "Jumlah channel notifikasi per state koneksi.",
	}, []string{"state"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visadesk_notify_state_changes_total",
		Help: "Perpindahan state channel notifikasi.",
	}, []string{"to"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visadesk_notify_delivered_total",
		Help: "Notifikasi yang diterima channel, per jenis.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, states, changes, delivered)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		channelStates:   states,
		channelChanges:  changes,
		delivered:       delivered,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// StateChanged memperbarui gauge state channel. Mengimplementasikan
// notify.Observer.
func (m *Metrics) StateChanged(from, to notify.State) {
	if m == nil {
		return
	}
	if from != notify.StateDisconnected {
		m.channelStates.WithLabelValues(from.String()).Dec()
	}
	if to != notify.StateDisconnected {
		m.channelStates.WithLabelValues(to.String()).Inc()
	}
	m.channelChanges.WithLabelValues(to.String()).Inc()
}

// Delivered menghitung notifikasi yang sampai ke channel.
func (m *Metrics) Delivered(kind notify.Kind) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(string(kind)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush meneruskan flush agar stream SSE tetap berjalan.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
