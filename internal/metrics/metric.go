package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// Observation is one measured value of a metric line.
type Observation struct {
	Time  time.Time
	Value float64
}

// Lines maps a line name to its new observations, in the order the metric
// produced them. A Lines value handed to a callback is owned by the collector
// for the duration of the call; callbacks must not retain it.
type Lines map[string][]Observation

// Client is the slice of the platform API the built-in metrics consume.
// *api.Client satisfies it.
type Client interface {
	FindAssignmentEvents(ctx context.Context, req api.AssignmentEventSearch) (*api.AssignmentEventList, error)
	GetAnalytics(ctx context.Context, reqs []api.AnalyticsRequest) (*api.Operation, error)
	WaitOperation(ctx context.Context, op *api.Operation) (*api.Operation, error)
	GetRequester(ctx context.Context) (*api.Requester, error)
}

// Metric is a configured probe over one platform resource.
//
// Refresh returns the observations that appeared since the previous call,
// advancing internal cursor state only for the observations it returns: a
// returned fragment is final even when Refresh also returns an error for
// lines it could not gather, and anything not returned is re-fetched on the
// next call.
type Metric interface {
	// LineNames returns every line name this metric can produce. The set is
	// fixed at construction; the collector uses it to reject duplicate line
	// names across metrics before polling starts.
	LineNames() []string

	// Refresh gathers new observations. It may return a non-nil fragment
	// together with an error when only some lines failed.
	Refresh(ctx context.Context) (Lines, error)

	// Interval is this metric's polling period. Zero means the collector
	// default.
	Interval() time.Duration
}

// ClientBinder is implemented by metrics whose query client may be injected
// after construction. Binding must complete before the first Refresh; the
// collector rejects unbound metrics at construction time.
type ClientBinder interface {
	BindClient(Client)
	ClientBound() bool
}

// BindClient binds one client to every metric in ms. It fails if any metric
// does not accept a late-bound client.
func BindClient(client Client, ms ...Metric) error {
	for _, m := range ms {
		b, ok := m.(ClientBinder)
		if !ok {
			return fmt.Errorf("metrics: %T does not accept a bound client", m)
		}
		b.BindClient(client)
	}
	return nil
}

// baseMetric carries the bound client and the per-metric interval override.
type baseMetric struct {
	client   Client
	interval time.Duration
}

func (m *baseMetric) BindClient(c Client) { m.client = c }

func (m *baseMetric) ClientBound() bool { return m.client != nil }

func (m *baseMetric) Interval() time.Duration { return m.interval }

// errNoClient is returned by a Refresh reached without a bound client. The
// collector's construction-time check makes this unreachable in normal use.
func errNoClient(metric string) error {
	return fmt.Errorf("metrics: %s: no client bound", metric)
}
