package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

func TestBalance_Refresh(t *testing.T) {
	client := newMockClient()
	client.requester = api.Requester{ID: "r1", Balance: 123.45}

	m := NewBalance(BalanceOptions{Client: client})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	got, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	obs := got["requester_balance"]
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %v", obs)
	}
	if obs[0].Value != 123.45 {
		t.Errorf("Value = %v, want 123.45", obs[0].Value)
	}
	if !obs[0].Time.Equal(at) {
		t.Errorf("Time = %v, want %v", obs[0].Time, at)
	}
}

func TestBalance_CustomLineName(t *testing.T) {
	m := NewBalance(BalanceOptions{LineName: "acme_balance", Client: newMockClient()})
	names := m.LineNames()
	if len(names) != 1 || names[0] != "acme_balance" {
		t.Errorf("LineNames = %v, want [acme_balance]", names)
	}
}

func TestBalance_QueryFailure(t *testing.T) {
	client := newMockClient()
	client.requesterErr = errors.New("boom")

	m := NewBalance(BalanceOptions{Client: client})
	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestCompletion_Refresh(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newMockClient()
	client.analytics = []api.AnalyticsResult{
		{Name: api.AnalyticsCompletionPercentage, SubjectID: "p1", Finished: finished, Result: 55},
	}

	m, err := NewPoolCompletedPercentage("p1", CompletionOptions{Client: client})
	if err != nil {
		t.Fatalf("NewPoolCompletedPercentage: %v", err)
	}

	got, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	obs := got["completion_percentage"]
	if len(obs) != 1 || obs[0].Value != 55 {
		t.Errorf("completion_percentage = %v, want one observation of 55", obs)
	}
}

func TestBindClient(t *testing.T) {
	m := NewBalance(BalanceOptions{})
	if m.ClientBound() {
		t.Fatal("expected unbound client")
	}
	if err := BindClient(newMockClient(), m); err != nil {
		t.Fatalf("BindClient: %v", err)
	}
	if !m.ClientBound() {
		t.Fatal("expected bound client")
	}
}

func TestBindClient_RejectsForeignMetric(t *testing.T) {
	if err := BindClient(newMockClient(), &ctxMetric{names: []string{"x"}}); err == nil {
		t.Fatal("expected error for metric without client binding, got nil")
	}
}
