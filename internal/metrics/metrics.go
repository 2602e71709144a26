// Package metrics exposes scheduler and authorization metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pkgd"

// Collector holds the daemon's Prometheus metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	created       prometheus.Counter
	finished      *prometheus.CounterVec
	lockRetries   prometheus.Counter
	lockTimeouts  prometheus.Counter
	wedges        prometheus.Counter
	authDecisions *prometheus.CounterVec
	running       prometheus.Gauge
	queued        prometheus.Gauge
	runDuration   *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_created_total",
			Help:      "Total number of transactions created",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_finished_total",
			Help:      "Total number of finished transactions by exit code",
		}, []string{"exit"}),
		lockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_retries_total",
			Help:      "Total number of transactions requeued after backend lock contention",
		}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Total number of transactions failed after exhausting lock retries",
		}),
		wedges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_wedges_total",
			Help:      "Total number of failed scheduler consistency checks",
		}),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_decisions_total",
			Help:      "Authorization results by action id",
		}, []string{"action", "result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions_running",
			Help:      "Current number of running transactions",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions_queued",
			Help:      "Current number of transactions ready to run",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_run_seconds",
			Help:      "Backend run time of finished transactions",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
		}, []string{"role"}),
	}

	c.registry.MustRegister(
		c.created,
		c.finished,
		c.lockRetries,
		c.lockTimeouts,
		c.wedges,
		c.authDecisions,
		c.running,
		c.queued,
		c.runDuration,
	)

	return c
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCreated counts a new transaction.
func (c *Collector) RecordCreated() {
	if c == nil {
		return
	}
	c.created.Inc()
}

// RecordFinished counts a finished transaction and observes its run time.
func (c *Collector) RecordFinished(role, exit string, runtime time.Duration) {
	if c == nil {
		return
	}
	c.finished.WithLabelValues(exit).Inc()
	if runtime > 0 {
		c.runDuration.WithLabelValues(role).Observe(runtime.Seconds())
	}
}

// RecordLockRetry counts a requeue after lock contention.
func (c *Collector) RecordLockRetry() {
	if c == nil {
		return
	}
	c.lockRetries.Inc()
}

// RecordLockTimeout counts a transaction failed with cannot-get-lock.
func (c *Collector) RecordLockTimeout() {
	if c == nil {
		return
	}
	c.lockTimeouts.Inc()
}

// RecordWedge counts a failed consistency check.
func (c *Collector) RecordWedge() {
	if c == nil {
		return
	}
	c.wedges.Inc()
}

// RecordAuthorization counts one authorization result.
func (c *Collector) RecordAuthorization(action, result string) {
	if c == nil {
		return
	}
	c.authDecisions.WithLabelValues(action, result).Inc()
}

// UpdateQueueStats sets the running and ready gauges.
func (c *Collector) UpdateQueueStats(queued, running int) {
	if c == nil {
		return
	}
	c.queued.Set(float64(queued))
	c.running.Set(float64(running))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
