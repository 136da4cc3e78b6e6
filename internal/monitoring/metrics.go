package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	UpstreamRetries prometheus.Counter
	CacheHits       prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "imageproxy_requests_total",
			Help: "The total number of proxy requests served",
		}, []string{"endpoint"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "imageproxy_errors_total",
			Help: "The total number of request failures",
		}, []string{"kind"}), // e.g. 'FORBIDDEN_TARGET', 'BAD_UPSTREAM'
		UpstreamRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "imageproxy_upstream_retries_total",
			Help: "The total number of retried upstream image fetches",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "imageproxy_metadata_cache_hits_total",
			Help: "The total number of metadata cache hits",
		}),
	}
}

func (m *Metrics) IncRequests(endpoint string) {
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) IncErrors(kind string) {
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
