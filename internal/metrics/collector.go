package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Callback receives the merged observations of one tick. It runs
// synchronously inside the polling loop: a slow callback delays the next
// tick rather than queueing unbounded concurrent invocations. The Lines value
// must not be retained past the call.
type Callback func(Lines) error

// Collector owns a set of metrics, polls each at its own period, merges the
// returned fragments, and delivers the merged result to the callback once
// per tick.
type Collector struct {
	cfg      Config
	metrics  []Metric
	callback Callback
	logger   *slog.Logger
}

// NewCollector creates a Collector. Configuration errors (no metrics, a
// missing callback, an unbound client, or a line name produced by more than
// one metric) are reported here, before any polling starts.
func NewCollector(cfg Config, ms []Metric, callback Callback, logger *slog.Logger) (*Collector, error) {
	cfg.ApplyDefaults()
	if callback == nil {
		return nil, errors.New("metrics: collector: callback is required")
	}
	if len(ms) == 0 {
		return nil, errors.New("metrics: collector: no metrics registered")
	}

	seen := make(map[string]struct{})
	for _, m := range ms {
		if b, ok := m.(ClientBinder); ok && !b.ClientBound() {
			return nil, fmt.Errorf("metrics: collector: %T has no bound client", m)
		}
		for _, name := range m.LineNames() {
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("metrics: collector: duplicate line name %q", name)
			}
			seen[name] = struct{}{}
		}
	}

	return &Collector{
		cfg:      cfg,
		metrics:  ms,
		callback: callback,
		logger:   logger.With("component", "collector"),
	}, nil
}

// Run starts the polling loop. Each metric is polled at its own period; a
// wake-up refreshes exactly the due subset, concurrently. Run blocks until
// ctx is cancelled; per-metric and callback failures are logged and never
// terminate the loop.
func (c *Collector) Run(ctx context.Context) error {
	// Zero times: the first wake-up polls every metric immediately.
	next := make([]time.Time, len(c.metrics))

	for {
		now := time.Now()
		var due []int
		for i, at := range next {
			if !at.After(now) {
				due = append(due, i)
			}
		}

		if len(due) > 0 {
			c.tick(ctx, due)
			after := time.Now()
			for _, i := range due {
				next[i] = after.Add(c.intervalOf(i))
			}
		}

		earliest := next[0]
		for _, at := range next[1:] {
			if at.Before(earliest) {
				earliest = at
			}
		}

		timer := time.NewTimer(time.Until(earliest))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tick refreshes the due metrics concurrently, merges the fragments, and
// invokes the callback exactly once. A metric that fails contributes nothing
// this tick; whatever it left unfetched is retried at its next due time.
func (c *Collector) tick(ctx context.Context, due []int) {
	fragments := make([]Lines, len(due))
	errs := make([]error, len(due))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxConcurrent)
	for k, idx := range due {
		k, idx := k, idx
		g.Go(func() error {
			mctx, cancel := context.WithTimeout(ctx, c.cfg.MetricTimeout)
			defer cancel()
			fragments[k], errs[k] = c.safeRefresh(mctx, c.metrics[idx])
			return nil
		})
	}
	_ = g.Wait()

	merged := Lines{}
	for k, idx := range due {
		if errs[k] != nil {
			c.logger.Warn("metric refresh failed",
				"metric", fmt.Sprintf("%T", c.metrics[idx]),
				"error", errs[k],
			)
		}
		// A fragment returned alongside an error is still final: the cursors
		// behind it advanced, so dropping it would lose observations.
		for line, obs := range fragments[k] {
			merged[line] = append(merged[line], obs...)
		}
	}

	if err := c.callback(merged); err != nil {
		c.logger.Warn("callback failed", "error", err)
	}
}

// safeRefresh calls a metric's Refresh with panic recovery.
func (c *Collector) safeRefresh(ctx context.Context, m Metric) (lines Lines, err error) {
	defer func() {
		if v := recover(); v != nil {
			lines = nil
			err = fmt.Errorf("metric panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return m.Refresh(ctx)
}

// intervalOf returns metric i's polling period, falling back to the
// collector default.
func (c *Collector) intervalOf(i int) time.Duration {
	if iv := c.metrics[i].Interval(); iv > 0 {
		return iv
	}
	return c.cfg.Interval
}
