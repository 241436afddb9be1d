// Package metrics exposes Prometheus collectors for the HTTP surface, the
// freshness cache, the telemetry store and the lamp feed.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sen66-server/internal/telemetry"
)

const namespace = "sen66"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheEvents   *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	publishes     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Freshness cache events, by lane and event (hit, miss, fetch_failed, stale_served, persist_failed).",
		}, []string{"lane", "event"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telemetry_query_duration_seconds",
			Help:      "Remote telemetry query durations, by outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_query_errors_total",
			Help:      "Remote telemetry query failures, by kind (config, transport, response, other).",
		}, []string{"kind"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "Lamp feed publishes, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.cacheEvents,
		m.queryDuration,
		m.queryErrors,
		m.publishes,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry. Compression is left to the HTTP middleware.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:           m.registry,
		DisableCompression: true,
	})
}

// ObserveRequest records one served request. route is the ServeMux pattern
// that matched; an empty route is counted as "unmatched".
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Cache observer. A nil *Metrics is a valid no-op observer.

func (m *Metrics) CacheHit(lane string)  { m.cacheEvent(lane, "hit") }
func (m *Metrics) CacheMiss(lane string) { m.cacheEvent(lane, "miss") }
func (m *Metrics) FetchFailed(lane string, _ error) {
	m.cacheEvent(lane, "fetch_failed")
}
func (m *Metrics) StaleServed(lane string) { m.cacheEvent(lane, "stale_served") }
func (m *Metrics) PersistFailed(lane string, _ error) {
	m.cacheEvent(lane, "persist_failed")
}

func (m *Metrics) cacheEvent(lane, event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(lane, event).Inc()
}

// Published counts one lamp feed publish.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.publishes.WithLabelValues(result).Inc()
}

// InstrumentQuerier wraps q so every query is timed and failures are classified.
func (m *Metrics) InstrumentQuerier(q telemetry.Querier) telemetry.Querier {
	if m == nil {
		return q
	}
	return &instrumentedQuerier{next: q, m: m}
}

type instrumentedQuerier struct {
	next telemetry.Querier
	m    *Metrics
}

func (i *instrumentedQuerier) Query(ctx context.Context, q telemetry.Query) ([]telemetry.Row, error) {
	start := time.Now()
	rows, err := i.next.Query(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		i.m.queryErrors.WithLabelValues(errorKind(err)).Inc()
	}
	i.m.queryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return rows, err
}

func errorKind(err error) string {
	var (
		transportErr *telemetry.TransportError
		responseErr  *telemetry.ResponseError
	)
	switch {
	case errors.Is(err, telemetry.ErrConfigMissing):
		return "config"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &responseErr):
		return "response"
	default:
		return "other"
	}
}
