package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsService interface {
	// HTTP metrics
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)

	// Quote metrics
	RecordQuote(direction string, valid bool, duration time.Duration)
	IncrementQuoteErrors(direction, errorType string)

	// Fee metrics
	IncrementFeeResolutions(kind string)
	IncrementDiscountRedemptions(status string)

	// Specification cache metrics
	RecordSpecRefresh(success bool, duration time.Duration)
	SetSpecCacheSize(size int)

	// External service metrics
	RecordExternalServiceCall(service, operation string, success bool, duration time.Duration)
}

type prometheusMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	quotesTotal      *prometheus.CounterVec
	quoteDuration    *prometheus.HistogramVec
	quoteErrorsTotal *prometheus.CounterVec

	feeResolutionsTotal      *prometheus.CounterVec
	discountRedemptionsTotal *prometheus.CounterVec

	specRefreshTotal    *prometheus.CounterVec
	specRefreshDuration prometheus.Histogram
	specCacheSize       prometheus.Gauge

	externalCallsTotal   *prometheus.CounterVec
	externalCallDuration *prometheus.HistogramVec
}

func NewMetricsService() MetricsService {
	return &prometheusMetrics{
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		quotesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_quotes_total",
			Help: "Total number of quotes computed",
		}, []string{"direction", "valid"}),
		quoteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_quote_duration_seconds",
			Help:    "Quote computation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
		quoteErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_quote_errors_total",
			Help: "Total number of quote failures by type",
		}, []string{"direction", "error_type"}),

		feeResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_fee_resolutions_total",
			Help: "Total number of fee resolutions by winning fee kind",
		}, []string{"kind"}),
		discountRedemptionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_discount_redemptions_total",
			Help: "Total number of discount code redemption attempts",
		}, []string{"status"}),

		specRefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_spec_refresh_total",
			Help: "Total number of specification cache refreshes",
		}, []string{"status"}),
		specRefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_spec_refresh_duration_seconds",
			Help:    "Specification cache refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		specCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricing_spec_cache_size",
			Help: "Number of transaction specifications currently cached",
		}),

		externalCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_external_service_calls_total",
			Help: "Total number of external service calls",
		}, []string{"service", "operation", "success"}),
		externalCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_external_service_call_duration_seconds",
			Help:    "External service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
	}
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusLabel(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordQuote(direction string, valid bool, duration time.Duration) {
	m.quotesTotal.WithLabelValues(direction, boolLabel(valid)).Inc()
	m.quoteDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

func (m *prometheusMetrics) IncrementQuoteErrors(direction, errorType string) {
	m.quoteErrorsTotal.WithLabelValues(direction, errorType).Inc()
}

func (m *prometheusMetrics) IncrementFeeResolutions(kind string) {
	m.feeResolutionsTotal.WithLabelValues(kind).Inc()
}

func (m *prometheusMetrics) IncrementDiscountRedemptions(status string) {
	m.discountRedemptionsTotal.WithLabelValues(status).Inc()
}

func (m *prometheusMetrics) RecordSpecRefresh(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.specRefreshTotal.WithLabelValues(status).Inc()
	m.specRefreshDuration.Observe(duration.Seconds())
}

func (m *prometheusMetrics) SetSpecCacheSize(size int) {
	m.specCacheSize.Set(float64(size))
}

func (m *prometheusMetrics) RecordExternalServiceCall(service, operation string, success bool, duration time.Duration) {
	m.externalCallsTotal.WithLabelValues(service, operation, boolLabel(success)).Inc()
	m.externalCallDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
