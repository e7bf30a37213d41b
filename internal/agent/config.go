// Package agent wires configuration, the API client, metrics, and the
// Graphite sink into a runnable collection daemon.
package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskhive/taskpulse/internal/api"
	"github.com/taskhive/taskpulse/internal/graphite"
	"github.com/taskhive/taskpulse/internal/metrics"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultDataDir is the default directory for persistent agent state.
	DefaultDataDir = "/var/lib/taskpulse"
)

// Metric kinds accepted in the "metrics" list of the configuration file.
const (
	KindAssignmentEvents    = "assignment_events"
	KindAssignments         = "assignments"
	KindCompletedPercentage = "completed_percentage"
	KindBalance             = "balance"
)

// AgentConfig is the top-level configuration for the taskpulse agent.
// It aggregates all subsystem configurations and is populated from
// a YAML configuration file via ParseConfig.
type AgentConfig struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// DataDir is the directory where the agent persists its resume
	// bookmark between runs.
	// Default: /var/lib/taskpulse
	DataDir string `yaml:"data_dir"`

	API      api.Config      `yaml:"api"`
	Collect  metrics.Config  `yaml:"collect"`
	Graphite graphite.Config `yaml:"graphite"`

	// Metrics declares which metrics the agent collects.
	// At least one entry is required.
	Metrics []MetricSpec `yaml:"metrics"`
}

// MetricSpec declares a single metric in the configuration file. Kind
// selects the metric type; the remaining fields apply depending on it.
type MetricSpec struct {
	// Kind is one of "assignment_events", "assignments",
	// "completed_percentage", "balance" (required).
	Kind string `yaml:"kind"`

	// PoolID is the pool to observe. Required for every kind
	// except "balance".
	PoolID string `yaml:"pool_id"`

	// Interval overrides the collector-wide polling interval
	// for this metric.
	Interval time.Duration `yaml:"interval"`

	// Lines maps assignment event types (e.g. "SUBMITTED") to line
	// names. Only used by "assignment_events".
	Lines map[string]string `yaml:"lines"`

	// DefaultLine receives events whose type has no entry in Lines.
	// Only used by "assignment_events".
	DefaultLine string `yaml:"default_line"`

	// JoinEvents reports a single count per refresh instead of
	// per-event-time counts. Only used by "assignment_events".
	JoinEvents bool `yaml:"join_events"`

	// SubmittedName, AcceptedName, RejectedName and SkippedName
	// override the line names of the "assignments" kind. An empty
	// string keeps the default name.
	SubmittedName string `yaml:"submitted_name"`
	AcceptedName  string `yaml:"accepted_name"`
	RejectedName  string `yaml:"rejected_name"`
	SkippedName   string `yaml:"skipped_name"`

	// LineName overrides the single line name of the
	// "completed_percentage" and "balance" kinds.
	LineName string `yaml:"line_name"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	c.API.ApplyDefaults()
	c.Collect.ApplyDefaults()
	c.Graphite.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *AgentConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent: config: invalid log_level %q", c.LogLevel)
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Collect.Validate(); err != nil {
		return err
	}
	if err := c.Graphite.Validate(); err != nil {
		return err
	}
	if len(c.Metrics) == 0 {
		return fmt.Errorf("agent: config: at least one metric is required")
	}
	for i := range c.Metrics {
		if err := c.Metrics[i].validate(); err != nil {
			return fmt.Errorf("agent: config: metrics[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *MetricSpec) validate() error {
	switch s.Kind {
	case KindAssignmentEvents, KindAssignments, KindCompletedPercentage:
		if s.PoolID == "" {
			return fmt.Errorf("kind %q: pool_id is required", s.Kind)
		}
	case KindBalance:
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if s.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	for name := range s.Lines {
		if _, err := parseEventType(name); err != nil {
			return err
		}
	}
	return nil
}

func parseEventType(s string) (api.EventType, error) {
	switch t := api.EventType(s); t {
	case api.EventCreated, api.EventSubmitted, api.EventAccepted,
		api.EventRejected, api.EventSkipped, api.EventExpired:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// ParseConfig reads a YAML configuration file and returns an AgentConfig.
// It applies defaults and validates the configuration.
func ParseConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
