package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MovementsPosted counts posting attempts by outcome. The "result" label
	// is one of: posted, account_not_found, invalid_value, insufficient_funds,
	// exceeded_daily_limit, server_error.
	MovementsPosted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_movements_posted_total",
		Help: "Movement posting attempts by outcome",
	}, []string{"result"})

	PostingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "backoffice_posting_duration_seconds",
		Help:    "Wall time of the posting read-validate-write cycle",
		Buckets: prometheus.DefBuckets,
	})
)

// NewRegistry builds a registry with the posting collectors plus the
// standard Go and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	for _, c := range []prometheus.Collector{
		MovementsPosted,
		PostingDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
