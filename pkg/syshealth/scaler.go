package syshealth

import (
	"sync"
	"time"
)

const (
	scaleDownCooldown = time.Minute
	scaleUpCooldown   = 5 * time.Minute
)

// ConcurrencyScaler adjusts worker concurrency from the monitor's zone:
// safe runs at max, warning at half of max, critical at min. Scale-downs
// apply after a one minute cooldown (immediately when critical); scale-ups
// wait five minutes and grow by at most 50% per step.
type ConcurrencyScaler struct {
	monitor    Monitor
	workerType string

	mu                 sync.Mutex
	enabled            bool
	minConcurrency     int
	maxConcurrency     int
	currentConcurrency int
	lastAdjustment     time.Time
}

func NewConcurrencyScaler(monitor Monitor, workerType string, enabled bool, min, max int) *ConcurrencyScaler {
	min, max = sanitizeBounds(min, max)
	return &ConcurrencyScaler{
		monitor:        monitor,
		workerType:     workerType,
		enabled:        enabled,
		minConcurrency: min,
		maxConcurrency: max,
		// Start at max; the first unhealthy sample scales down.
		currentConcurrency: max,
		lastAdjustment:     time.Now(),
	}
}

// GetConcurrency returns the concurrency currently allowed. When scaling is
// disabled the caller's static value passes through untouched.
func (s *ConcurrencyScaler) GetConcurrency(staticValue int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return staticValue
	}

	health := s.monitor.GetHealth()
	zone := health.Zone
	if health.Stale {
		// No fresh data: assume pressure rather than full speed.
		zone = HealthZoneWarning
	}

	target := s.targetFor(zone)
	now := time.Now()
	elapsed := now.Sub(s.lastAdjustment)

	switch {
	case target < s.currentConcurrency:
		if zone == HealthZoneCritical || elapsed >= scaleDownCooldown {
			s.adjust(target, "down", now)
		}
	case target > s.currentConcurrency:
		if elapsed >= scaleUpCooldown {
			step := s.currentConcurrency / 2
			if step < 1 {
				step = 1
			}
			next := s.currentConcurrency + step
			if next > target {
				next = target
			}
			s.adjust(next, "up", now)
		}
	}

	s.currentConcurrency = clampInt(s.currentConcurrency, s.minConcurrency, s.maxConcurrency)
	return s.currentConcurrency
}

func (s *ConcurrencyScaler) targetFor(zone HealthZone) int {
	switch zone {
	case HealthZoneCritical:
		return s.minConcurrency
	case HealthZoneWarning:
		half := s.maxConcurrency / 2
		if half < s.minConcurrency {
			return s.minConcurrency
		}
		return half
	default:
		return s.maxConcurrency
	}
}

// adjust records a concurrency change. Caller holds the lock.
func (s *ConcurrencyScaler) adjust(target int, direction string, now time.Time) {
	s.currentConcurrency = target
	s.lastAdjustment = now
	WorkerConcurrency.WithLabelValues(s.workerType).Set(float64(target))
	WorkerAdjustments.WithLabelValues(s.workerType, direction).Inc()
}

// UpdateConfig replaces the scaler bounds at runtime, clamping the current
// concurrency into the new range.
func (s *ConcurrencyScaler) UpdateConfig(enabled bool, min, max int) {
	min, max = sanitizeBounds(min, max)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	s.minConcurrency = min
	s.maxConcurrency = max
	s.currentConcurrency = clampInt(s.currentConcurrency, min, max)
}

func sanitizeBounds(min, max int) (int, int) {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return min, max
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
