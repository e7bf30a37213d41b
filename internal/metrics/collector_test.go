package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// fakeMetric is a scriptable Metric for collector tests.
type fakeMetric struct {
	mu       sync.Mutex
	names    []string
	interval time.Duration
	refresh  func(call int) (Lines, error)
	calls    int
}

func (f *fakeMetric) LineNames() []string { return f.names }

func (f *fakeMetric) Interval() time.Duration { return f.interval }

func (f *fakeMetric) Refresh(context.Context) (Lines, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	fn := f.refresh
	f.mu.Unlock()
	if fn == nil {
		return Lines{}, nil
	}
	return fn(call)
}

func (f *fakeMetric) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder collects callback invocations.
type recorder struct {
	mu    sync.Mutex
	ticks []Lines
	err   error
}

func (r *recorder) callback(lines Lines) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy: the collector owns the map after the call returns.
	cp := Lines{}
	for k, v := range lines {
		cp[k] = append([]Observation(nil), v...)
	}
	r.ticks = append(r.ticks, cp)
	return r.err
}

func (r *recorder) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *recorder) tick(i int) Lines {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks[i]
}

func testCollectorConfig() Config {
	return Config{
		Interval:      20 * time.Millisecond,
		MetricTimeout: time.Second,
		MaxConcurrent: 4,
	}
}

func singleObservation(line string, v float64) func(int) (Lines, error) {
	return func(int) (Lines, error) {
		return Lines{line: {{Time: time.Now(), Value: v}}}, nil
	}
}

func TestNewCollector_Validation(t *testing.T) {
	cb := func(Lines) error { return nil }
	a := &fakeMetric{names: []string{"a"}}

	tests := []struct {
		name     string
		metrics  []Metric
		callback Callback
	}{
		{"nil callback", []Metric{a}, nil},
		{"no metrics", nil, cb},
		{"duplicate line names", []Metric{
			&fakeMetric{names: []string{"same"}},
			&fakeMetric{names: []string{"same"}},
		}, cb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCollector(testCollectorConfig(), tt.metrics, tt.callback, discardLogger()); err == nil {
				t.Fatal("expected construction error, got nil")
			}
		})
	}
}

func TestNewCollector_RejectsUnboundClient(t *testing.T) {
	m, err := NewAssignmentEventsInPool("p1", AssignmentEventsOptions{})
	if err != nil {
		t.Fatalf("NewAssignmentEventsInPool: %v", err)
	}

	_, err = NewCollector(testCollectorConfig(), []Metric{m}, func(Lines) error { return nil }, discardLogger())
	if err == nil {
		t.Fatal("expected unbound client error, got nil")
	}

	if err := BindClient(newMockClient(), m); err != nil {
		t.Fatalf("BindClient: %v", err)
	}
	if _, err := NewCollector(testCollectorConfig(), []Metric{m}, func(Lines) error { return nil }, discardLogger()); err != nil {
		t.Fatalf("expected construction to succeed after binding, got %v", err)
	}
}

func TestCollector_DeliversMergedLines(t *testing.T) {
	a := &fakeMetric{names: []string{"a"}, refresh: singleObservation("a", 1)}
	b := &fakeMetric{names: []string{"b"}, refresh: singleObservation("b", 2)}
	rec := &recorder{}

	c, err := NewCollector(testCollectorConfig(), []Metric{a, b}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want context.DeadlineExceeded", err)
	}

	if rec.tickCount() < 2 {
		t.Fatalf("expected at least 2 ticks (1 immediate + repeats), got %d", rec.tickCount())
	}
	first := rec.tick(0)
	if len(first["a"]) != 1 || first["a"][0].Value != 1 {
		t.Errorf("line a = %v, want one observation of 1", first["a"])
	}
	if len(first["b"]) != 1 || first["b"][0].Value != 2 {
		t.Errorf("line b = %v, want one observation of 2", first["b"])
	}
}

func TestCollector_FailedMetricIsolated(t *testing.T) {
	a := &fakeMetric{names: []string{"a"}, refresh: func(int) (Lines, error) {
		return nil, errors.New("a is down")
	}}
	b := &fakeMetric{names: []string{"b"}, refresh: singleObservation("b", 2)}
	rec := &recorder{}

	c, err := NewCollector(testCollectorConfig(), []Metric{a, b}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	if rec.tickCount() == 0 {
		t.Fatal("expected at least one tick")
	}
	first := rec.tick(0)
	if _, ok := first["a"]; ok {
		t.Errorf("failed metric leaked observations: %v", first["a"])
	}
	if len(first["b"]) != 1 {
		t.Errorf("line b = %v, want one observation", first["b"])
	}
	// The failed metric keeps being retried.
	if a.callCount() < 2 {
		t.Errorf("failed metric polled %d times, want at least 2", a.callCount())
	}
}

func TestCollector_CallbackFailureDoesNotStopTicking(t *testing.T) {
	a := &fakeMetric{names: []string{"a"}, refresh: singleObservation("a", 1)}
	rec := &recorder{err: errors.New("sink unreachable")}

	c, err := NewCollector(testCollectorConfig(), []Metric{a}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	if rec.tickCount() < 3 {
		t.Errorf("expected ticking to continue despite callback failures, got %d ticks", rec.tickCount())
	}
}

func TestCollector_CallbackFailurePreservesCursorAdvance(t *testing.T) {
	base := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	mc := newMockClient()
	mc.addEvent("ev1", api.EventSubmitted, base.Add(time.Second))
	mc.addEvent("ev2", api.EventSubmitted, base.Add(2*time.Second))

	m, err := NewAssignmentEventsInPool("p1", AssignmentEventsOptions{
		Lines:  map[api.EventType]string{api.EventSubmitted: "submitted"},
		Since:  base,
		Client: mc,
	})
	if err != nil {
		t.Fatalf("NewAssignmentEventsInPool: %v", err)
	}

	rec := &recorder{err: errors.New("sink unreachable")}
	c, err := NewCollector(testCollectorConfig(), []Metric{m}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	if rec.tickCount() < 2 {
		t.Fatalf("expected ticking to continue despite callback failures, got %d ticks", rec.tickCount())
	}
	if got := len(rec.tick(0)["submitted"]); got != 2 {
		t.Fatalf("first tick delivered %d observations, want 2", got)
	}
	// The cursor advanced even though the callback failed: later ticks must
	// not re-deliver the first tick's events.
	for i := 1; i < rec.tickCount(); i++ {
		if got := len(rec.tick(i)["submitted"]); got != 0 {
			t.Errorf("tick %d re-delivered %d observations, want 0", i, got)
		}
	}
}

func TestCollector_PanickingMetricIsolated(t *testing.T) {
	a := &fakeMetric{names: []string{"a"}, refresh: func(int) (Lines, error) {
		panic("metric bug")
	}}
	b := &fakeMetric{names: []string{"b"}, refresh: singleObservation("b", 2)}
	rec := &recorder{}

	c, err := NewCollector(testCollectorConfig(), []Metric{a, b}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	if rec.tickCount() == 0 {
		t.Fatal("expected ticking to survive a panicking metric")
	}
	if len(rec.tick(0)["b"]) != 1 {
		t.Errorf("line b = %v, want one observation", rec.tick(0)["b"])
	}
}

func TestCollector_PerMetricIntervals(t *testing.T) {
	fast := &fakeMetric{names: []string{"fast"}, interval: 15 * time.Millisecond, refresh: singleObservation("fast", 1)}
	slow := &fakeMetric{names: []string{"slow"}, interval: 200 * time.Millisecond, refresh: singleObservation("slow", 1)}
	rec := &recorder{}

	c, err := NewCollector(testCollectorConfig(), []Metric{fast, slow}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	if fast.callCount() < 4 {
		t.Errorf("fast metric polled %d times, want at least 4", fast.callCount())
	}
	if slow.callCount() != 1 {
		t.Errorf("slow metric polled %d times, want exactly 1 (immediate only)", slow.callCount())
	}
}

func TestCollector_MetricTimeout(t *testing.T) {
	cfg := testCollectorConfig()
	cfg.MetricTimeout = 10 * time.Millisecond

	blocked := make(chan struct{})
	stuckMetric := &ctxMetric{names: []string{"stuck"}, block: blocked}
	ok := &fakeMetric{names: []string{"ok"}, refresh: singleObservation("ok", 1)}
	rec := &recorder{}

	c, err := NewCollector(cfg, []Metric{stuckMetric, ok}, rec.callback, discardLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)
	close(blocked)

	if rec.tickCount() == 0 {
		t.Fatal("expected ticks despite a stuck metric")
	}
	if len(rec.tick(0)["ok"]) != 1 {
		t.Errorf("ok line missing from tick: %v", rec.tick(0))
	}
	if _, leaked := rec.tick(0)["stuck"]; leaked {
		t.Error("timed-out metric contributed observations")
	}
}

// ctxMetric blocks until its context is cancelled, simulating a hung query.
type ctxMetric struct {
	names []string
	block chan struct{}
}

func (m *ctxMetric) LineNames() []string     { return m.names }
func (m *ctxMetric) Interval() time.Duration { return 0 }

func (m *ctxMetric) Refresh(ctx context.Context) (Lines, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.block:
		return Lines{}, nil
	}
}
