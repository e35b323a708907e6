package host

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the host API.
type Metrics struct {
	registry            *prometheus.Registry
	loginOutcomes       *prometheus.CounterVec
	catalogFetches      *prometheus.CounterVec
	catalogStreams      prometheus.Gauge
	manifestResolutions *prometheus.CounterVec
	authenticated       prometheus.Gauge
}

// NewMetrics creates and registers the gemdesk metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	loginOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gemdesk_login_outcomes_total",
		Help: "Terminal login flow outcomes by event type",
	}, []string{"outcome"})
	catalogFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gemdesk_catalog_fetches_total",
		Help: "Catalog aggregation runs by result",
	}, []string{"result"})
	catalogStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gemdesk_catalog_streams",
		Help: "Streams returned by the most recent successful catalog fetch",
	})
	manifestResolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gemdesk_manifest_resolutions_total",
		Help: "Manifest resolution calls by result",
	}, []string{"result"})
	authenticated := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gemdesk_authenticated",
		Help: "1 while an active session is stored, else 0",
	})

	registry.MustRegister(
		loginOutcomes,
		catalogFetches,
		catalogStreams,
		manifestResolutions,
		authenticated,
	)

	return &Metrics{
		registry:            registry,
		loginOutcomes:       loginOutcomes,
		catalogFetches:      catalogFetches,
		catalogStreams:      catalogStreams,
		manifestResolutions: manifestResolutions,
		authenticated:       authenticated,
	}
}

// ObserveLogin counts one terminal login outcome.
func (m *Metrics) ObserveLogin(outcome string) {
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveCatalog counts one aggregation run and records its size on success.
func (m *Metrics) ObserveCatalog(err error, streams int) {
	if err != nil {
		m.catalogFetches.WithLabelValues("error").Inc()
		return
	}
	m.catalogFetches.WithLabelValues("ok").Inc()
	m.catalogStreams.Set(float64(streams))
}

// ObserveManifest counts one resolution call.
func (m *Metrics) ObserveManifest(err error) {
	if err != nil {
		m.manifestResolutions.WithLabelValues("error").Inc()
		return
	}
	m.manifestResolutions.WithLabelValues("ok").Inc()
}

// SetAuthenticated reflects whether a session is currently stored.
func (m *Metrics) SetAuthenticated(ok bool) {
	if ok {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
