package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
	"github.com/taskhive/taskpulse/internal/events"
)

// Default line names tracked when AssignmentEventsOptions names none.
const (
	defaultSubmittedEventsLine = "submitted_events_in_pool"
	defaultAcceptedEventsLine  = "accepted_events_in_pool"
	defaultRejectedEventsLine  = "rejected_events_in_pool"
)

// AssignmentEventsOptions configures an AssignmentEventsInPool metric.
type AssignmentEventsOptions struct {
	// Lines classifies tracked event types into line names. An event type
	// mapped to "" is tracked but routed to DefaultLine (or dropped when
	// DefaultLine is empty too).
	// When Lines is empty, SUBMITTED/ACCEPTED/REJECTED are tracked under
	// their default line names.
	Lines map[api.EventType]string

	// DefaultLine receives events of tracked types that Lines maps to "".
	// Empty means such events are dropped.
	DefaultLine string

	// JoinEvents aggregates each refresh into a single count observation
	// stamped at refresh time instead of one observation per event time.
	JoinEvents bool

	// Since positions the cursors: only events after this instant count.
	// Zero means the metric's construction time.
	Since time.Time

	// Interval overrides the collector's default polling period.
	Interval time.Duration

	// Client queries the platform. May be left nil and injected later with
	// BindClient, but must be set before the first refresh.
	Client Client
}

// AssignmentEventsInPool tracks the flow of assignment lifecycle events in
// one pool: one cursor per tracked event type, each producing a named line
// of per-poll event counts. Useful for checking that a pool is alive; for
// absolute totals use AssignmentsInPool.
type AssignmentEventsInPool struct {
	baseMetric
	poolID      string
	lines       map[api.EventType]string
	defaultLine string
	joinEvents  bool
	since       time.Time
	now         func() time.Time

	tracked []api.EventType                     // deterministic refresh order
	cursors map[api.EventType]*events.AssignmentCursor // built lazily at first refresh
}

// NewAssignmentEventsInPool creates the metric. Duplicate line names within
// the metric are a configuration error.
func NewAssignmentEventsInPool(poolID string, opts AssignmentEventsOptions) (*AssignmentEventsInPool, error) {
	if poolID == "" {
		return nil, errors.New("metrics: assignment events: pool id is required")
	}

	lines := opts.Lines
	if len(lines) == 0 {
		lines = map[api.EventType]string{
			api.EventSubmitted: defaultSubmittedEventsLine,
			api.EventAccepted:  defaultAcceptedEventsLine,
			api.EventRejected:  defaultRejectedEventsLine,
		}
	}

	tracked := make([]api.EventType, 0, len(lines))
	for et := range lines {
		tracked = append(tracked, et)
	}
	sort.Slice(tracked, func(i, j int) bool { return tracked[i] < tracked[j] })

	since := opts.Since
	if since.IsZero() {
		since = time.Now().UTC()
	}

	m := &AssignmentEventsInPool{
		baseMetric:  baseMetric{client: opts.Client, interval: opts.Interval},
		poolID:      poolID,
		lines:       lines,
		defaultLine: opts.DefaultLine,
		joinEvents:  opts.JoinEvents,
		since:       since,
		now:         time.Now,
		tracked:     tracked,
	}

	names := m.LineNames()
	if len(names) == 0 {
		return nil, errors.New("metrics: assignment events: no line names configured")
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("metrics: assignment events: duplicate line name %q", name)
		}
		seen[name] = struct{}{}
	}
	return m, nil
}

// LineNames returns the configured line names, including the default line
// when any tracked type routes to it.
func (m *AssignmentEventsInPool) LineNames() []string {
	var names []string
	seen := make(map[string]struct{})
	needDefault := false
	for _, et := range m.tracked {
		name := m.lines[et]
		if name == "" {
			needDefault = true
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	if needDefault && m.defaultLine != "" {
		if _, ok := seen[m.defaultLine]; !ok {
			names = append(names, m.defaultLine)
		}
	}
	return names
}

// Refresh fetches new events from every tracked cursor and routes them to
// their lines. A cursor failure is isolated: other cursors' observations are
// still returned (their state advanced), together with a joined error for
// the ones that failed.
func (m *AssignmentEventsInPool) Refresh(ctx context.Context) (Lines, error) {
	if m.client == nil {
		return nil, errNoClient("assignment events")
	}
	if m.cursors == nil {
		m.cursors = make(map[api.EventType]*events.AssignmentCursor, len(m.tracked))
		for _, et := range m.tracked {
			m.cursors[et] = events.NewAssignmentCursor(m.client, m.poolID, et, m.since)
		}
	}

	out := Lines{}
	var errs []error
	for _, et := range m.tracked {
		evs, err := m.cursors[et].Fetch(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		line := m.lines[et]
		if line == "" {
			line = m.defaultLine
		}
		if line == "" {
			continue // tracked but unrouted: dropped by policy
		}
		out[line] = append(out[line], m.observe(evs)...)
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, errors.Join(errs...)
}

// observe converts a batch of events into observations. Joined: one count at
// refresh time, zero included. Unjoined: one count per distinct event time,
// preserving event order, nothing when the batch is empty.
func (m *AssignmentEventsInPool) observe(evs []api.AssignmentEvent) []Observation {
	if m.joinEvents {
		return []Observation{{Time: m.now().UTC(), Value: float64(len(evs))}}
	}

	var out []Observation
	for _, ev := range evs {
		if n := len(out); n > 0 && out[n-1].Time.Equal(ev.Time) {
			out[n-1].Value++
			continue
		}
		out = append(out, Observation{Time: ev.Time, Value: 1})
	}
	return out
}
