package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/quotewizard/internal/jobs"
)

// Metrics memegang registry Prometheus milik proses beserta semua kolektor
// HTTP, penyimpanan draft dan job.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	draftSaves   *prometheus.CounterVec
	draftLatency *prometheus.HistogramVec

	jobs *jobmetrics.Metrics
}

// NewMetrics membuat registry baru. Kolektor runtime Go dan proses ikut
// didaftarkan.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quotewizard_http_requests_total",
			Help: "Permintaan HTTP per pola route dan kode status.",
		}, []string{"route", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotewizard_http_request_duration_seconds",
			Help:    "Latensi permintaan HTTP per pola route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "quotewizard_http_requests_in_flight",
			Help: "Permintaan HTTP yang sedang diproses.",
		}),
		draftSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quotewizard_draft_saves_total",
			Help: "Penulisan draft per operasi (create, update) dan hasil.",
		}, []string{"op", "result"}),
		draftLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotewizard_draft_save_duration_seconds",
			Help:    "Durasi penulisan draft per operasi.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		jobs: jobmetrics.NewMetrics(reg),
	}
}

// Handler melayani endpoint /metrics. Tanpa Metrics hasilnya 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat jumlah, latensi dan permintaan aktif. Label route
// memakai pola chi agar kardinalitas tetap rendah.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSave mencatat satu penulisan draft, baik dari sesi wizard maupun
// dari layanan draft.
func (m *Metrics) ObserveSave(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.draftSaves.WithLabelValues(op, result).Inc()
	m.draftLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Jobs mengembalikan metrik job pada registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer untuk kolektor tambahan.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}
