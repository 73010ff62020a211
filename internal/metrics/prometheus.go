package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Trigger metrics
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRunTime  prometheus.Gauge
	runsInFlight prometheus.Gauge

	// Scheduler metrics
	tickDrift prometheus.Histogram

	// Import job metrics
	importRequestsTotal   *prometheus.CounterVec
	importRequestDuration prometheus.Histogram

	// Reconciler metrics
	abandonedTotal prometheus.Counter

	// Leader election metrics
	isLeader        prometheus.Gauge
	leaderAcquired  prometheus.Counter
	leaderLostTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initTriggerMetrics(reg)
	s.initImportMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initTriggerMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyimport_trigger_runs_total",
		Help: "Total number of trigger invocations by outcome.",
	}, []string{"outcome"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyimport_trigger_run_duration_seconds",
		Help:    "Wall-clock duration of each trigger invocation in seconds.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
	})
	s.lastRunTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyimport_trigger_last_run_timestamp_seconds",
		Help: "Unix time at which the last trigger invocation finished.",
	})
	s.runsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyimport_trigger_runs_in_flight",
		Help: "Number of trigger invocations currently waiting on the launcher.",
	})
	s.tickDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyimport_scheduler_tick_drift_seconds",
		Help:    "Difference between actual and planned fire time in seconds.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60},
	})

	s.register(reg, s.runsTotal, "easyimport_trigger_runs_total")
	s.register(reg, s.runDuration, "easyimport_trigger_run_duration_seconds")
	s.register(reg, s.lastRunTime, "easyimport_trigger_last_run_timestamp_seconds")
	s.register(reg, s.runsInFlight, "easyimport_trigger_runs_in_flight")
	s.register(reg, s.tickDrift, "easyimport_scheduler_tick_drift_seconds")
}

func (s *PrometheusSink) initImportMetrics(reg prometheus.Registerer) {
	s.importRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyimport_importjob_requests_total",
		Help: "Total number of import endpoint requests by status class.",
	}, []string{"status_class"})
	s.importRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyimport_importjob_request_duration_seconds",
		Help:    "Import endpoint request latency in seconds.",
		Buckets: []float64{0.1, 1, 5, 30, 120, 600, 1800},
	})
	s.abandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyimport_reconciler_abandoned_total",
		Help: "Total number of stale executions marked ABANDONED.",
	})

	s.register(reg, s.importRequestsTotal, "easyimport_importjob_requests_total")
	s.register(reg, s.importRequestDuration, "easyimport_importjob_request_duration_seconds")
	s.register(reg, s.abandonedTotal, "easyimport_reconciler_abandoned_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyimport_leader_is_leader",
		Help: "1 if this instance holds the leader lock, 0 otherwise.",
	})
	s.leaderAcquired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyimport_leader_acquired_total",
		Help: "Total number of times leadership was acquired.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyimport_leader_lost_total",
		Help: "Total number of times leadership was lost, by reason.",
	}, []string{"reason"})

	s.register(reg, s.isLeader, "easyimport_leader_is_leader")
	s.register(reg, s.leaderAcquired, "easyimport_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "easyimport_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Trigger metrics implementation

func (s *PrometheusSink) RunStarted() {
	s.runsInFlight.Inc()
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, outcome string) {
	s.runsInFlight.Dec()
	s.runsTotal.WithLabelValues(outcome).Inc()
	s.runDuration.Observe(duration.Seconds())
	s.lastRunTime.SetToCurrentTime()
}

func (s *PrometheusSink) TickDrift(drift time.Duration) {
	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.tickDrift.Observe(d)
}

// Import job metrics implementation

func (s *PrometheusSink) ImportRequestCompleted(statusClass string, duration time.Duration) {
	s.importRequestsTotal.WithLabelValues(statusClass).Inc()
	s.importRequestDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ExecutionsAbandoned(count int) {
	s.abandonedTotal.Add(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.isLeader.Set(1)
		return
	}
	s.isLeader.Set(0)
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquired.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
