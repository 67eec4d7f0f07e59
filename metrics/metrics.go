package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/theoremus-urban-solutions/smartbus/tracking"
)

// Collector owns a private registry with the monitor's series.
type Collector struct {
	reg *prometheus.Registry

	Fetches     prometheus.Counter
	FetchErrors *prometheus.CounterVec // kind label: rate_limited|upstream|transport|decode|other
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	Records       *prometheus.CounterVec // status label: normal|slow|delayed
	Vehicles      prometheus.Gauge
	CycleDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	CacheTTL prometheus.Gauge // seconds
}

// NewCollector registers every smartbus series on a private registry.
func NewCollector(cacheTTL time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbus_feed_fetches_total",
			Help: "Upstream vehicle feed requests issued.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartbus_feed_fetch_errors_total",
			Help: "Failed pipeline cycles by error kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbus_cache_hits_total",
			Help: "Cycles served from the cached snapshot.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbus_cache_misses_total",
			Help: "Cycles that required an upstream fetch.",
		}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartbus_movement_records_total",
			Help: "Movement records produced by status.",
		}, []string{"status"}),
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbus_filtered_vehicles",
			Help: "Vehicles on the configured routes in the last cycle.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartbus_cycle_duration_seconds",
			Help:    "Duration of a fetch, filter and classify cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbus_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbus_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbus_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartbus_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		CacheTTL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbus_cache_ttl_seconds",
			Help: "Snapshot reuse window in seconds.",
		}),
	}

	reg.MustRegister(
		c.Fetches, c.FetchErrors, c.CacheHits, c.CacheMisses,
		c.Records, c.Vehicles, c.CycleDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.CacheTTL,
	)
	c.CacheTTL.Set(cacheTTL.Seconds())

	return c
}

// Registry returns the private registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()
	log.WithField("addr", addr).Info("metrics listening")
	return srv
}

// CacheHit counts a snapshot served without I/O.
func (c *Collector) CacheHit() { c.CacheHits.Inc() }

// CacheMiss counts a miss. Every upstream fetch follows a miss.
func (c *Collector) CacheMiss() {
	c.CacheMisses.Inc()
	c.Fetches.Inc()
}

// CycleFailed counts a failed cycle under its error kind.
func (c *Collector) CycleFailed(kind string) { c.FetchErrors.WithLabelValues(kind).Inc() }

// CycleObserved records a classified cycle and its records by status.
func (c *Collector) CycleObserved(d time.Duration, vehicles int, records []tracking.MovementRecord) {
	c.CycleDuration.Observe(d.Seconds())
	c.Vehicles.Set(float64(vehicles))
	for _, r := range records {
		c.Records.WithLabelValues(r.Status.String()).Inc()
	}
}

// Publisher hooks.
func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}
