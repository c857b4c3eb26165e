package service

import "sync/atomic"

// Metrics tracks registry operation counters
type Metrics struct {
	TemplatesCreated int64 `json:"templates_created"`
	AliasConflicts   int64 `json:"alias_conflicts"`
	ForcedRebuilds   int64 `json:"forced_rebuilds"`
	DispatchFailures int64 `json:"dispatch_failures"`
	TemplatesDeleted int64 `json:"templates_deleted"`
	BuildsTimedOut   int64 `json:"builds_timed_out"`
}

var globalMetrics = &Metrics{}

// GetMetrics returns the current metrics snapshot
func GetMetrics() Metrics {
	return Metrics{
		TemplatesCreated: atomic.LoadInt64(&globalMetrics.TemplatesCreated),
		AliasConflicts:   atomic.LoadInt64(&globalMetrics.AliasConflicts),
		ForcedRebuilds:   atomic.LoadInt64(&globalMetrics.ForcedRebuilds),
		DispatchFailures: atomic.LoadInt64(&globalMetrics.DispatchFailures),
		TemplatesDeleted: atomic.LoadInt64(&globalMetrics.TemplatesDeleted),
		BuildsTimedOut:   atomic.LoadInt64(&globalMetrics.BuildsTimedOut),
	}
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	atomic.StoreInt64(&globalMetrics.TemplatesCreated, 0)
	atomic.StoreInt64(&globalMetrics.AliasConflicts, 0)
	atomic.StoreInt64(&globalMetrics.ForcedRebuilds, 0)
	atomic.StoreInt64(&globalMetrics.DispatchFailures, 0)
	atomic.StoreInt64(&globalMetrics.TemplatesDeleted, 0)
	atomic.StoreInt64(&globalMetrics.BuildsTimedOut, 0)
}

func recordCreated() {
	atomic.AddInt64(&globalMetrics.TemplatesCreated, 1)
}

func recordConflict() {
	atomic.AddInt64(&globalMetrics.AliasConflicts, 1)
}

func recordForcedRebuild() {
	atomic.AddInt64(&globalMetrics.ForcedRebuilds, 1)
}

func recordDispatchFailure() {
	atomic.AddInt64(&globalMetrics.DispatchFailures, 1)
}

func recordDeleted() {
	atomic.AddInt64(&globalMetrics.TemplatesDeleted, 1)
}

func recordTimedOut(n int) {
	atomic.AddInt64(&globalMetrics.BuildsTimedOut, int64(n))
}

// ConflictRate returns alias conflicts as a percentage of create attempts
func (m Metrics) ConflictRate() float64 {
	attempts := m.TemplatesCreated + m.AliasConflicts
	if attempts == 0 {
		return 0
	}
	return float64(m.AliasConflicts) / float64(attempts) * 100
}
