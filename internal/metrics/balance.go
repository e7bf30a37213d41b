package metrics

import (
	"context"
	"fmt"
	"time"
)

// defaultBalanceLine is the line name used when none is configured.
const defaultBalanceLine = "requester_balance"

// BalanceOptions configures a Balance metric.
type BalanceOptions struct {
	// LineName overrides the default "requester_balance".
	LineName string

	Interval time.Duration
	Client   Client
}

// Balance tracks the requester account balance: money neither spent nor
// reserved.
type Balance struct {
	baseMetric
	line string
	now  func() time.Time
}

// NewBalance creates the metric.
func NewBalance(opts BalanceOptions) *Balance {
	line := opts.LineName
	if line == "" {
		line = defaultBalanceLine
	}
	return &Balance{
		baseMetric: baseMetric{client: opts.Client, interval: opts.Interval},
		line:       line,
		now:        time.Now,
	}
}

// LineNames returns the single configured line name.
func (m *Balance) LineNames() []string {
	return []string{m.line}
}

// Refresh reads the current balance.
func (m *Balance) Refresh(ctx context.Context) (Lines, error) {
	if m.client == nil {
		return nil, errNoClient("balance")
	}
	r, err := m.client.GetRequester(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics: balance: %w", err)
	}
	return Lines{
		m.line: {{Time: m.now().UTC(), Value: r.Balance}},
	}, nil
}
