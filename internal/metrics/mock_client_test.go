package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// mockClient is a test double for Client backed by an in-memory event store
// and scripted analytics/requester responses.
type mockClient struct {
	mu sync.Mutex

	events    []api.AssignmentEvent
	eventsErr error

	analytics    []api.AnalyticsResult
	analyticsErr error
	opStatus     api.OperationStatus

	requester    api.Requester
	requesterErr error
}

func newMockClient() *mockClient {
	return &mockClient{opStatus: api.OperationSuccess}
}

func (m *mockClient) addEvent(id string, et api.EventType, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, api.AssignmentEvent{
		ID:           id,
		PoolID:       "p1",
		AssignmentID: "a-" + id,
		Type:         et,
		Time:         t,
	})
}

func (m *mockClient) setEventsErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsErr = err
}

// FindAssignmentEvents honors the type, time, and id bounds the way the
// server does, so cursors behave the same as against the real API.
func (m *mockClient) FindAssignmentEvents(_ context.Context, req api.AssignmentEventSearch) (*api.AssignmentEventList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventsErr != nil {
		return nil, m.eventsErr
	}

	var matched []api.AssignmentEvent
	for _, ev := range m.events {
		if ev.Type != req.EventType {
			continue
		}
		if req.TimeGTE != nil && ev.Time.Before(*req.TimeGTE) {
			continue
		}
		if req.TimeGT != nil && !ev.Time.After(*req.TimeGT) {
			continue
		}
		if req.TimeLTE != nil && ev.Time.After(*req.TimeLTE) {
			continue
		}
		if req.IDGt != "" && ev.ID <= req.IDGt {
			continue
		}
		matched = append(matched, ev)
	}
	sort.Slice(matched, func(i, j int) bool {
		if req.ByID {
			return matched[i].ID < matched[j].ID
		}
		if !matched[i].Time.Equal(matched[j].Time) {
			return matched[i].Time.Before(matched[j].Time)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := req.Limit
	if limit == 0 || limit > len(matched) {
		limit = len(matched)
	}
	return &api.AssignmentEventList{
		Items:   matched[:limit],
		HasMore: limit < len(matched),
	}, nil
}

func (m *mockClient) GetAnalytics(_ context.Context, reqs []api.AnalyticsRequest) (*api.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyticsErr != nil {
		return nil, m.analyticsErr
	}

	// Answer only what was asked, in request order.
	var details []api.AnalyticsResult
	for _, req := range reqs {
		for _, r := range m.analytics {
			if r.Name == req.Name && r.SubjectID == req.SubjectID {
				details = append(details, r)
			}
		}
	}
	return &api.Operation{
		ID:      fmt.Sprintf("op-%d", len(reqs)),
		Status:  m.opStatus,
		Details: details,
	}, nil
}

func (m *mockClient) WaitOperation(_ context.Context, op *api.Operation) (*api.Operation, error) {
	return op, nil
}

func (m *mockClient) GetRequester(_ context.Context) (*api.Requester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requesterErr != nil {
		return nil, m.requesterErr
	}
	return &m.requester, nil
}
