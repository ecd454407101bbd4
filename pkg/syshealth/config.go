package syshealth

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds thresholds for the system health monitor. Values above the
// warning threshold add a half penalty for that component, values above the
// critical threshold a full one.
type Config struct {
	// CollectionInterval is how often system metrics are collected.
	CollectionInterval time.Duration `yaml:"collection_interval"`

	// IOWaitCriticalPercent is the I/O wait threshold for a critical penalty.
	IOWaitCriticalPercent float64 `yaml:"io_wait_critical_percent"`
	// IOWaitWarningPercent is the I/O wait threshold for a warning penalty.
	IOWaitWarningPercent float64 `yaml:"io_wait_warning_percent"`
	// CPULoadCriticalFactor is the load average multiplier (vs CPU count) for a critical penalty.
	CPULoadCriticalFactor float64 `yaml:"cpu_load_critical_factor"`
	// CPULoadWarningFactor is the load average multiplier (vs CPU count) for a warning penalty.
	CPULoadWarningFactor float64 `yaml:"cpu_load_warning_factor"`
	// MemoryCriticalPercent is the memory usage threshold for a critical penalty.
	MemoryCriticalPercent float64 `yaml:"memory_critical_percent"`
	// MemoryWarningPercent is the memory usage threshold for a warning penalty.
	MemoryWarningPercent float64 `yaml:"memory_warning_percent"`
	// DBPoolCriticalPercent is the connection pool usage threshold for a critical penalty.
	DBPoolCriticalPercent float64 `yaml:"db_pool_critical_percent"`
	// DBPoolWarningPercent is the connection pool usage threshold for a warning penalty.
	DBPoolWarningPercent float64 `yaml:"db_pool_warning_percent"`

	// StalenessThreshold is the age after which metrics are considered stale.
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`

	// CollectionTimeout bounds a single metric collection cycle.
	CollectionTimeout time.Duration `yaml:"collection_timeout"`
}

// DefaultConfig returns a Config with default thresholds.
func DefaultConfig() *Config {
	return &Config{
		CollectionInterval:    30 * time.Second,
		IOWaitCriticalPercent: 40.0,
		IOWaitWarningPercent:  30.0,
		CPULoadCriticalFactor: 3.0,
		CPULoadWarningFactor:  2.0,
		MemoryCriticalPercent: 95.0,
		MemoryWarningPercent:  85.0,
		DBPoolCriticalPercent: 90.0,
		DBPoolWarningPercent:  75.0,
		StalenessThreshold:    2 * time.Minute,
		CollectionTimeout:     5 * time.Second,
	}
}

// LoadConfig reads zone thresholds from a YAML file, layered over defaults.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read health zones file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse health zones file: %w", err)
	}
	if cfg.CollectionInterval <= 0 {
		return nil, fmt.Errorf("collection_interval must be positive")
	}
	return cfg, nil
}
