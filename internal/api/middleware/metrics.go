// metrics.go — Prometheus метрики DarkVault.
// HTTP-метрики собираются middleware; бизнес-метрики экспортируются
// для обновления из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkvault_http_requests_total",
			Help: "Общее количество HTTP-запросов к DarkVault",
		},
		[]string{"method", "route", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "darkvault_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к DarkVault в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — файловые операции: operation=upload|delete, result=success|not_found|rejected|error.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkvault_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// UploadedBytesTotal — суммарный объём загруженных данных.
	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "darkvault_uploaded_bytes_total",
			Help: "Суммарный объём загруженных файлов в байтах",
		},
	)

	// DerivedArtifactsTotal — построение превью и QR-кодов: kind=thumbnail|qr, result=success|error.
	DerivedArtifactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkvault_derived_artifacts_total",
			Help: "Количество попыток построения превью и QR-кодов",
		},
		[]string{"kind", "result"},
	)

	// AuditWritesTotal — записи в журнал аудита: result=success|error.
	AuditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darkvault_audit_writes_total",
			Help: "Количество записей в журнал аудита",
		},
		[]string{"result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Лейбл route — шаблон маршрута chi, поэтому имена файлов
// не увеличивают кардинальность.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
		})
	}
}

// routePattern возвращает шаблон сработавшего маршрута chi.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
