package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// defaultCompletionLine is the line name used when none is configured.
const defaultCompletionLine = "completion_percentage"

// CompletionOptions configures a PoolCompletedPercentage metric.
type CompletionOptions struct {
	// LineName overrides the default "completion_percentage".
	LineName string

	Interval time.Duration
	Client   Client
}

// PoolCompletedPercentage tracks how much of a pool is completed, as a
// percentage computed server-side through the analytics API.
type PoolCompletedPercentage struct {
	baseMetric
	poolID string
	line   string
}

// NewPoolCompletedPercentage creates the metric.
func NewPoolCompletedPercentage(poolID string, opts CompletionOptions) (*PoolCompletedPercentage, error) {
	if poolID == "" {
		return nil, errors.New("metrics: completion: pool id is required")
	}
	line := opts.LineName
	if line == "" {
		line = defaultCompletionLine
	}
	return &PoolCompletedPercentage{
		baseMetric: baseMetric{client: opts.Client, interval: opts.Interval},
		poolID:     poolID,
		line:       line,
	}, nil
}

// LineNames returns the single configured line name.
func (m *PoolCompletedPercentage) LineNames() []string {
	return []string{m.line}
}

// Refresh computes the current completion percentage.
func (m *PoolCompletedPercentage) Refresh(ctx context.Context) (Lines, error) {
	if m.client == nil {
		return nil, errNoClient("completion")
	}

	results, err := runAnalytics(ctx, m.client, []api.AnalyticsRequest{
		{Name: api.AnalyticsCompletionPercentage, SubjectID: m.poolID},
	})
	if err != nil {
		return nil, fmt.Errorf("metrics: completion: %w", err)
	}

	out := Lines{}
	for _, r := range results {
		if r.Name == api.AnalyticsCompletionPercentage {
			out[m.line] = []Observation{{Time: r.Finished, Value: r.Result}}
		}
	}
	return out, nil
}
