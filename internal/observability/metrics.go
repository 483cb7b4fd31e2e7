package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	salesRecorded   *prometheus.CounterVec
	salesVoided     prometheus.Counter
	stockDebits     *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik penjualan.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vetdesk_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vetdesk_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vetdesk_sales_recorded_total",
		Help: "Penjualan yang tersimpan berdasarkan status akhir.",
	}, []string{"status"})
	voided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetdesk_sales_voided_total",
		Help: "Penjualan yang dibatalkan.",
	})
	debits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vetdesk_stock_debits_total",
		Help: "Pengurangan stok berdasarkan hasil (applied, oversold, rejected).",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, recorded, voided, debits)
	return &Metrics{
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		salesRecorded:   recorded,
		salesVoided:     voided,
		stockDebits:     debits,
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

// SaleRecorded mencatat penjualan yang tersimpan.
func (m *Metrics) SaleRecorded(status string) {
	if m == nil {
		return
	}
	m.salesRecorded.WithLabelValues(status).Inc()
}

// SaleVoided mencatat pembatalan penjualan.
func (m *Metrics) SaleVoided() {
	if m == nil {
		return
	}
	m.salesVoided.Inc()
}

// StockDebits menambah n pengurangan stok dengan hasil outcome.
func (m *Metrics) StockDebits(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stockDebits.WithLabelValues(outcome).Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
