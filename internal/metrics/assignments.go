package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// Default line names tracked when AssignmentsOptions names none.
const (
	defaultSubmittedLine = "submitted_assignments_in_pool"
	defaultAcceptedLine  = "accepted_assignments_in_pool"
	defaultRejectedLine  = "rejected_assignments_in_pool"
)

// AssignmentsOptions configures an AssignmentsInPool metric. A status whose
// line name is empty is not tracked; when all four are empty the
// submitted/accepted/rejected defaults apply.
type AssignmentsOptions struct {
	SubmittedName string
	AcceptedName  string
	RejectedName  string
	SkippedName   string

	Interval time.Duration
	Client   Client
}

// AssignmentsInPool tracks absolute assignment counts per status in one
// pool, computed server-side through the analytics API. Each refresh submits
// one analytics operation and waits for it, so a refresh may return nothing
// new only on operation failure. Counts are absolute, not incremental.
type AssignmentsInPool struct {
	baseMetric
	poolID string
	lines  map[string]string // analytics request name -> line name
}

// NewAssignmentsInPool creates the metric. Duplicate line names are a
// configuration error.
func NewAssignmentsInPool(poolID string, opts AssignmentsOptions) (*AssignmentsInPool, error) {
	if poolID == "" {
		return nil, errors.New("metrics: assignments: pool id is required")
	}

	lines := map[string]string{}
	if opts.SubmittedName != "" {
		lines[api.AnalyticsSubmittedCount] = opts.SubmittedName
	}
	if opts.AcceptedName != "" {
		lines[api.AnalyticsAcceptedCount] = opts.AcceptedName
	}
	if opts.RejectedName != "" {
		lines[api.AnalyticsRejectedCount] = opts.RejectedName
	}
	if opts.SkippedName != "" {
		lines[api.AnalyticsSkippedCount] = opts.SkippedName
	}
	if len(lines) == 0 {
		lines = map[string]string{
			api.AnalyticsSubmittedCount: defaultSubmittedLine,
			api.AnalyticsAcceptedCount:  defaultAcceptedLine,
			api.AnalyticsRejectedCount:  defaultRejectedLine,
		}
	}

	seen := make(map[string]struct{}, len(lines))
	for _, name := range lines {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("metrics: assignments: duplicate line name %q", name)
		}
		seen[name] = struct{}{}
	}

	return &AssignmentsInPool{
		baseMetric: baseMetric{client: opts.Client, interval: opts.Interval},
		poolID:     poolID,
		lines:      lines,
	}, nil
}

// LineNames returns the configured line names.
func (m *AssignmentsInPool) LineNames() []string {
	names := make([]string, 0, len(m.lines))
	for _, name := range m.lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh submits the analytics requests and converts the finished operation
// into one observation per tracked status.
func (m *AssignmentsInPool) Refresh(ctx context.Context) (Lines, error) {
	if m.client == nil {
		return nil, errNoClient("assignments")
	}

	reqs := make([]api.AnalyticsRequest, 0, len(m.lines))
	for name := range m.lines {
		reqs = append(reqs, api.AnalyticsRequest{Name: name, SubjectID: m.poolID})
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Name < reqs[j].Name })

	results, err := runAnalytics(ctx, m.client, reqs)
	if err != nil {
		return nil, fmt.Errorf("metrics: assignments: %w", err)
	}

	out := Lines{}
	for _, r := range results {
		line, ok := m.lines[r.Name]
		if !ok {
			continue
		}
		out[line] = []Observation{{Time: r.Finished, Value: r.Result}}
	}
	return out, nil
}

// runAnalytics submits analytics requests and waits for the operation to
// finish, returning its results.
func runAnalytics(ctx context.Context, client Client, reqs []api.AnalyticsRequest) ([]api.AnalyticsResult, error) {
	op, err := client.GetAnalytics(ctx, reqs)
	if err != nil {
		return nil, err
	}
	op, err = client.WaitOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if op.Status != api.OperationSuccess {
		return nil, fmt.Errorf("analytics operation %s finished with status %s", op.ID, op.Status)
	}
	return op.Details, nil
}
