package syshealth

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/logger"
)

// Component weights for the composite score. I/O wait dominates because
// path index builds are disk-bound.
const (
	weightIOWait = 0.40
	weightCPU    = 0.30
	weightDBPool = 0.20
	weightMemory = 0.10
)

type sysMonitor struct {
	cfg *Config
	db  bun.IDB
	log *slog.Logger

	mu      sync.RWMutex
	metrics *HealthMetrics
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool

	lastCPUTimes   *cpu.TimesStat
	consecFailures int

	// Injectable collectors, swapped out by tests.
	getLoadAvg  func(context.Context) (*load.AvgStat, error)
	getCPUTimes func(context.Context, bool) ([]cpu.TimesStat, error)
	getMemStats func(context.Context) (*mem.VirtualMemoryStat, error)
	getCPUCores func() int
}

// NewMonitor creates a monitor sampling host metrics and the pool stats of
// db on the configured interval. A nil cfg uses defaults.
func NewMonitor(cfg *Config, db bun.IDB, log *slog.Logger) Monitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &sysMonitor{
		cfg:         cfg,
		db:          db,
		log:         log.With(logger.Scope("syshealth.monitor")),
		metrics:     &HealthMetrics{Score: 100, Zone: HealthZoneSafe},
		getLoadAvg:  load.AvgWithContext,
		getCPUTimes: cpu.TimesWithContext,
		getMemStats: mem.VirtualMemoryWithContext,
		getCPUCores: runtime.NumCPU,
	}
}

func (m *sysMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.ticker = time.NewTicker(m.cfg.CollectionInterval)

	go func() {
		m.collect()
		for {
			select {
			case <-m.ticker.C:
				m.collect()
			case <-m.stopCh:
				return
			}
		}
	}()

	m.log.Info("system health monitor started",
		slog.Duration("interval", m.cfg.CollectionInterval))
	return nil
}

func (m *sysMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.ticker.Stop()
	close(m.stopCh)
	m.log.Info("system health monitor stopped")
	return nil
}

// GetHealth returns a copy of the latest sample, flagged stale when older
// than the staleness threshold.
func (m *sysMonitor) GetHealth() *HealthMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := *m.metrics
	if time.Since(out.Timestamp) > m.cfg.StalenessThreshold {
		out.Stale = true
	}
	return &out
}

// sample is one raw collection pass before scoring.
type sample struct {
	loadAvg    float64
	ioWait     float64
	memPercent float64
	dbPercent  float64
	complete   bool
}

func (m *sysMonitor) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CollectionTimeout)
	defer cancel()

	s := m.gather(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Carry forward the previous value for anything that failed to collect
	// so one flaky sample does not swing the score.
	if !s.complete {
		m.consecFailures++
		if m.consecFailures >= 3 {
			m.log.Error("persistent metric collection failures",
				slog.Int("failures", m.consecFailures))
		}
		if s.loadAvg == 0 {
			s.loadAvg = m.metrics.CPULoadAvg
		}
		if s.ioWait == 0 {
			s.ioWait = m.metrics.IOWaitPercent
		}
		if s.memPercent == 0 {
			s.memPercent = m.metrics.MemoryPercent
		}
	} else {
		m.consecFailures = 0
	}

	score := m.score(s)
	zone := zoneFor(score)

	if zone != m.metrics.Zone {
		m.log.Warn("system health zone transition",
			slog.String("old_zone", string(m.metrics.Zone)),
			slog.String("new_zone", string(zone)),
			slog.Int("score", score))
	}

	m.metrics = &HealthMetrics{
		Score:         score,
		Zone:          zone,
		CPULoadAvg:    s.loadAvg,
		IOWaitPercent: s.ioWait,
		MemoryPercent: s.memPercent,
		DBPoolPercent: s.dbPercent,
		Timestamp:     time.Now(),
	}

	HealthScore.WithLabelValues(string(zone)).Set(float64(score))
	IOWaitPercent.Set(s.ioWait)
	CPULoadAvg.WithLabelValues("1m").Set(s.loadAvg)
	MemoryUtilization.Set(s.memPercent)
	DBPoolUtilization.Set(s.dbPercent)

	m.log.Debug("system health sampled",
		slog.Int("score", score),
		slog.String("zone", string(zone)),
		slog.Float64("io_wait", s.ioWait),
		slog.Float64("cpu_load", s.loadAvg),
		slog.Float64("db_pool", s.dbPercent),
		slog.Float64("mem", s.memPercent))
}

func (m *sysMonitor) gather(ctx context.Context) sample {
	s := sample{complete: true}

	if l, err := m.getLoadAvg(ctx); err == nil {
		s.loadAvg = l.Load1
	} else {
		s.complete = false
		m.log.Error("load average collection failed", logger.Error(err))
	}

	// I/O wait is a delta against the previous CPU times sample; the first
	// pass reports zero.
	if times, err := m.getCPUTimes(ctx, false); err == nil && len(times) > 0 {
		t := times[0]
		if prev := m.lastCPUTimes; prev != nil {
			deltaTotal := t.Total() - prev.Total()
			if deltaTotal > 0 {
				s.ioWait = (t.Iowait - prev.Iowait) / deltaTotal * 100.0
			}
		}
		m.lastCPUTimes = &t
	} else {
		s.complete = false
		if err != nil {
			m.log.Error("cpu times collection failed", logger.Error(err))
		} else {
			m.log.Error("cpu times collection returned no data")
		}
	}

	if v, err := m.getMemStats(ctx); err == nil {
		s.memPercent = v.UsedPercent
	} else {
		s.complete = false
		m.log.Error("memory stats collection failed", logger.Error(err))
	}

	if bdb, ok := m.db.(*bun.DB); ok {
		stats := bdb.DB.Stats()
		if stats.MaxOpenConnections > 0 {
			s.dbPercent = float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100.0
		}
	}

	return s
}

func (m *sysMonitor) score(s sample) int {
	cores := float64(m.getCPUCores())
	if cores == 0 {
		cores = 1
	}

	penalty := componentPenalty(s.ioWait, m.cfg.IOWaitWarningPercent, m.cfg.IOWaitCriticalPercent)*weightIOWait +
		componentPenalty(s.loadAvg/cores*100.0, m.cfg.CPULoadWarningFactor*100.0, m.cfg.CPULoadCriticalFactor*100.0)*weightCPU +
		componentPenalty(s.dbPercent, m.cfg.DBPoolWarningPercent, m.cfg.DBPoolCriticalPercent)*weightDBPool +
		componentPenalty(s.memPercent, m.cfg.MemoryWarningPercent, m.cfg.MemoryCriticalPercent)*weightMemory

	score := 100 - int(penalty)
	if score < 0 {
		return 0
	}
	return score
}

// componentPenalty maps a reading to 0 (fine), 50 (past warning), or
// 100 (past critical).
func componentPenalty(value, warning, critical float64) float64 {
	switch {
	case value >= critical:
		return 100.0
	case value >= warning:
		return 50.0
	default:
		return 0.0
	}
}

func zoneFor(score int) HealthZone {
	switch {
	case score <= 33:
		return HealthZoneCritical
	case score <= 66:
		return HealthZoneWarning
	default:
		return HealthZoneSafe
	}
}
