package syshealth

import "time"

// HealthZone buckets the health score: safe above 66, warning 34-66,
// critical at or below 33.
type HealthZone string

const (
	HealthZoneSafe     HealthZone = "safe"
	HealthZoneWarning  HealthZone = "warning"
	HealthZoneCritical HealthZone = "critical"
)

// HealthMetrics is one sampled view of host and pool pressure plus the
// score derived from it.
type HealthMetrics struct {
	// Score runs 0-100, higher is healthier.
	Score int
	Zone  HealthZone

	// CPULoadAvg is the 1-minute load average.
	CPULoadAvg float64
	// IOWaitPercent is I/O wait as a share of CPU time since the last sample.
	IOWaitPercent float64
	MemoryPercent float64
	// DBPoolPercent is connection pool utilization.
	DBPoolPercent float64

	Timestamp time.Time
	// Stale is set when the sample is older than the staleness threshold;
	// consumers should degrade toward caution.
	Stale bool
}

// Monitor samples system health in the background. The index builder's
// concurrency scaler reads it to throttle parallel work under pressure.
type Monitor interface {
	Start() error
	Stop() error
	GetHealth() *HealthMetrics
}
