package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes recorded by the scheduler
const (
	OutcomeSuccess         = "success"
	OutcomeFailure         = "failure"
	OutcomeCached          = "cached"
	OutcomeSkippedQuota    = "skipped_quota"
	OutcomeSkippedDailyCap = "skipped_daily_cap"
)

// Collector groups the service's Prometheus instruments.
// A nil *Collector is valid and records nothing.
type Collector struct {
	updates             *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	ledgerWriteFailures prometheus.Counter
	monthlyUsage        prometheus.Gauge
	listenerErrors      *prometheus.CounterVec
	opportunities       *prometheus.CounterVec
}

// NewCollector creates and registers the collectors on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythia_updates_total",
			Help: "update attempts by sport and outcome",
		}, []string{"sport", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pythia_fetch_duration_seconds",
			Help:    "vendor fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"sport"}),
		ledgerWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pythia_ledger_write_failures_total",
			Help: "fetches whose metered call could not be recorded",
		}),
		monthlyUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pythia_monthly_api_calls",
			Help: "metered calls recorded for the current month",
		}),
		listenerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythia_listener_errors_total",
			Help: "update listener failures by listener",
		}, []string{"listener"}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythia_opportunities_published_total",
			Help: "opportunities published by type",
		}, []string{"type"}),
	}

	reg.MustRegister(
		c.updates,
		c.fetchDuration,
		c.ledgerWriteFailures,
		c.monthlyUsage,
		c.listenerErrors,
		c.opportunities,
	)
	return c
}

// Update counts one update attempt outcome
func (c *Collector) Update(sport, outcome string) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(sport, outcome).Inc()
}

// FetchDuration observes one vendor fetch
func (c *Collector) FetchDuration(sport string, d time.Duration) {
	if c == nil {
		return
	}
	c.fetchDuration.WithLabelValues(sport).Observe(d.Seconds())
}

// LedgerWriteFailure counts a metered call that could not be recorded
func (c *Collector) LedgerWriteFailure() {
	if c == nil {
		return
	}
	c.ledgerWriteFailures.Inc()
}

// MonthlyUsage sets the current month's recorded call count
func (c *Collector) MonthlyUsage(count int) {
	if c == nil {
		return
	}
	c.monthlyUsage.Set(float64(count))
}

// ListenerError counts a failed update listener
func (c *Collector) ListenerError(listener string) {
	if c == nil {
		return
	}
	c.listenerErrors.WithLabelValues(listener).Inc()
}

// OpportunityPublished counts one published opportunity
func (c *Collector) OpportunityPublished(kind string) {
	if c == nil {
		return
	}
	c.opportunities.WithLabelValues(kind).Inc()
}
