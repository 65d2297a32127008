// Package metrics exposes sync, provider and moderation counters to
// Prometheus. Collector is fed through the events.Emitter interface and the
// sources.ObserveFunc hook, so the domain packages never import it.
package metrics

import (
	"context"
	"net/http"
	"time"

	"nightmap/internal/domain/venues"
	"nightmap/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nightmap"

type Collector struct {
	registry *prometheus.Registry

	syncRuns         prometheus.Counter
	syncDuration     prometheus.Histogram
	syncUnique       prometheus.Gauge
	sourceFetched    *prometheus.GaugeVec
	upsertFailures   *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	submissions      prometheus.Counter
	decisions        *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Completed sync cycles.",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a sync cycle.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120},
		}),
		syncUnique: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_unique_venues",
			Help:      "Unique venues after deduplication in the last sync cycle.",
		}),
		sourceFetched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_fetched_venues",
			Help:      "Venues returned by each provider in the last sync cycle.",
		}, []string{"source"}),
		upsertFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_failures_total",
			Help:      "Venues that could not be written to the catalog.",
		}, []string{"source"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider HTTP attempts by outcome.",
		}, []string{"source", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of provider HTTP attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "User venue submissions.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Moderation decisions by resulting status.",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.syncRuns,
		c.syncDuration,
		c.syncUnique,
		c.sourceFetched,
		c.upsertFailures,
		c.providerRequests,
		c.providerLatency,
		c.submissions,
		c.decisions,
	)
	return c
}

func (c *Collector) Emit(_ context.Context, e events.Event) {
	switch e.Name {
	case events.SyncCompleted:
		c.syncRuns.Inc()
		c.syncDuration.Observe(e.Duration.Seconds())
		c.syncUnique.Set(float64(e.Count))
	case events.SourceFetched:
		c.sourceFetched.WithLabelValues(e.Source).Set(float64(e.Count))
	case events.VenueUpsertFailed:
		c.upsertFailures.WithLabelValues(e.Source).Inc()
	case events.SubmissionCreated:
		c.submissions.Inc()
	case events.SubmissionApproved:
		c.decisions.WithLabelValues("approved").Inc()
	case events.SubmissionRejected:
		c.decisions.WithLabelValues("rejected").Inc()
	}
}

// ObserveProvider has the sources.ObserveFunc signature.
func (c *Collector) ObserveProvider(source venues.Source, outcome string, elapsed time.Duration) {
	c.providerRequests.WithLabelValues(string(source), outcome).Inc()
	c.providerLatency.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
