// Package metrics provides incremental metrics over crowdsourcing pools and
// the collector loop that polls them and fans the results out to a callback.
package metrics

import (
	"errors"
	"time"
)

// DefaultInterval is the default polling period for metrics that do not
// declare their own.
const DefaultInterval = 30 * time.Second

// DefaultMetricTimeout is the default per-refresh deadline for one metric.
const DefaultMetricTimeout = 10 * time.Second

// DefaultMaxConcurrent is the default cap on concurrently refreshing metrics.
const DefaultMaxConcurrent = 8

// Config holds the configuration for the Collector.
type Config struct {
	// Interval is the default polling period, used for every metric whose
	// Interval() is zero. Must be at least 1s.
	Interval time.Duration `yaml:"interval"`

	// MetricTimeout bounds one metric's Refresh call. A timed-out refresh is
	// a per-metric failure for that tick. Must be at least 1s.
	MetricTimeout time.Duration `yaml:"metric_timeout"`

	// MaxConcurrent caps how many metrics refresh at the same time within
	// one tick. Must be > 0. Default: 8.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.MetricTimeout == 0 {
		c.MetricTimeout = DefaultMetricTimeout
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return errors.New("metrics: config: Interval must be at least 1s")
	}
	if c.MetricTimeout < time.Second {
		return errors.New("metrics: config: MetricTimeout must be at least 1s")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("metrics: config: MaxConcurrent must be > 0")
	}
	return nil
}
