// Prometheus 指标导出
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 业务指标
	RegistrationsTotal *prometheus.GaugeVec
	PetsAdopted        prometheus.Gauge
	ProductsActive     prometheus.Gauge
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		RegistrationsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total pet registrations by status",
			},
			[]string{"status"},
		),
		PetsAdopted: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pets_adopted_total",
				Help:      "Number of pets that have been adopted",
			},
		),
		ProductsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "products_active",
				Help:      "Number of active products in the catalog",
			},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 替换为占位符，避免高基数
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/pets/adopt/"):
		return "/api/v1/pets/adopt/{id}"
	case strings.HasPrefix(path, "/api/v1/pets/adoption-request/"):
		return "/api/v1/pets/adoption-request/{id}"
	case strings.HasPrefix(path, "/api/v1/admin/status/"):
		return "/api/v1/admin/status/{id}"
	case strings.HasPrefix(path, "/api/v1/admin/delete-registration/"):
		return "/api/v1/admin/delete-registration/{id}"
	case strings.HasPrefix(path, "/api/v1/products/category/"):
		return "/api/v1/products/category/{category}"
	case strings.HasPrefix(path, "/api/v1/products/") && strings.HasSuffix(path, "/stock"):
		return "/api/v1/products/{id}/stock"
	case strings.HasPrefix(path, "/api/v1/products/") && strings.HasSuffix(path, "/permanent"):
		return "/api/v1/products/{id}/permanent"
	case strings.HasPrefix(path, "/api/v1/products/") && path != "/api/v1/products/featured/list":
		return "/api/v1/products/{id}"
	default:
		return path
	}
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsUpdater 启动业务指标刷新循环
//
// 周期性从存储层拉取登记 / 商品统计并刷新 Gauge，ctx 取消时退出。
func (h *Handler) StartMetricsUpdater(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.refreshDomainMetrics(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (h *Handler) refreshDomainMetrics(ctx context.Context) {
	if stats, err := h.store.CountRegistrationsByStatus(ctx); err == nil {
		h.metrics.RegistrationsTotal.WithLabelValues(string(model.RegistrationStatusPending)).Set(float64(stats.Pending))
		h.metrics.RegistrationsTotal.WithLabelValues(string(model.RegistrationStatusApproved)).Set(float64(stats.Approved))
		h.metrics.RegistrationsTotal.WithLabelValues(string(model.RegistrationStatusRejected)).Set(float64(stats.Rejected))
	}
	if regs, err := h.store.ListRegistrations(ctx, true); err == nil {
		adopted := 0
		for _, reg := range regs {
			if reg.Pet.AdoptionStatus == model.PetAdopted {
				adopted++
			}
		}
		h.metrics.PetsAdopted.Set(float64(adopted))
	}
	if products, err := h.store.ListProducts(ctx, storage.ProductFilter{OnlyActive: true}); err == nil {
		h.metrics.ProductsActive.Set(float64(len(products)))
	}
}
