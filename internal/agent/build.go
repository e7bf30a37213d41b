package agent

import (
	"fmt"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
	"github.com/taskhive/taskpulse/internal/metrics"
)

// BuildMetrics constructs the metrics declared in cfg.Metrics and binds
// them to client. Event metrics count events after since; a zero since
// means from construction time. The returned slice is ready for
// metrics.NewCollector.
func BuildMetrics(cfg *AgentConfig, client metrics.Client, since time.Time) ([]metrics.Metric, error) {
	ms := make([]metrics.Metric, 0, len(cfg.Metrics))
	for i := range cfg.Metrics {
		m, err := buildMetric(&cfg.Metrics[i], client, since)
		if err != nil {
			return nil, fmt.Errorf("agent: metrics[%d]: %w", i, err)
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func buildMetric(spec *MetricSpec, client metrics.Client, since time.Time) (metrics.Metric, error) {
	switch spec.Kind {
	case KindAssignmentEvents:
		var lines map[api.EventType]string
		if len(spec.Lines) > 0 {
			lines = make(map[api.EventType]string, len(spec.Lines))
			for name, line := range spec.Lines {
				t, err := parseEventType(name)
				if err != nil {
					return nil, err
				}
				lines[t] = line
			}
		}
		return metrics.NewAssignmentEventsInPool(spec.PoolID, metrics.AssignmentEventsOptions{
			Lines:       lines,
			DefaultLine: spec.DefaultLine,
			JoinEvents:  spec.JoinEvents,
			Since:       since,
			Interval:    spec.Interval,
			Client:      client,
		})
	case KindAssignments:
		return metrics.NewAssignmentsInPool(spec.PoolID, metrics.AssignmentsOptions{
			SubmittedName: spec.SubmittedName,
			AcceptedName:  spec.AcceptedName,
			RejectedName:  spec.RejectedName,
			SkippedName:   spec.SkippedName,
			Interval:      spec.Interval,
			Client:        client,
		})
	case KindCompletedPercentage:
		return metrics.NewPoolCompletedPercentage(spec.PoolID, metrics.CompletionOptions{
			LineName: spec.LineName,
			Interval: spec.Interval,
			Client:   client,
		})
	case KindBalance:
		return metrics.NewBalance(metrics.BalanceOptions{
			LineName: spec.LineName,
			Interval: spec.Interval,
			Client:   client,
		}), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}
