package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RunStarted()                                                {}
func (n *NoopSink) RunCompleted(duration time.Duration, outcome string)        {}
func (n *NoopSink) TickDrift(drift time.Duration)                              {}
func (n *NoopSink) ImportRequestCompleted(statusClass string, d time.Duration) {}
func (n *NoopSink) ExecutionsAbandoned(count int)                              {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                          {}
func (n *NoopSink) LeaderAcquired()                                            {}
func (n *NoopSink) LeaderLost(reason string)                                   {}
