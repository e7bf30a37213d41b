// Package events provides incremental cursors over platform event streams.
//
// A cursor remembers the newest event it has already delivered and fetches
// only newer events on each call. Cursor state is committed only after a
// fetch completes successfully, so a failed or cancelled fetch is retried in
// full on the next call and no event is ever lost or delivered twice.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/taskhive/taskpulse/internal/api"
)

// DefaultPageLimit is the page size requested from the search endpoint.
const DefaultPageLimit = 500

// Fetcher is the slice of the API client the cursor needs.
type Fetcher interface {
	FindAssignmentEvents(ctx context.Context, req api.AssignmentEventSearch) (*api.AssignmentEventList, error)
}

// cursorState is the bookmark: the time bound for the next fetch, whether the
// bound is exclusive, and the ids already delivered at the bound timestamp.
type cursorState struct {
	since  time.Time
	strict bool
	seen   map[string]struct{}
}

func (s cursorState) clone() cursorState {
	seen := make(map[string]struct{}, len(s.seen))
	for id := range s.seen {
		seen[id] = struct{}{}
	}
	return cursorState{since: s.since, strict: s.strict, seen: seen}
}

// AssignmentCursor iterates over assignment events of one type in one pool.
//
// Successive Fetch calls return disjoint, time-ordered batches. The time
// filter on the search endpoint is inclusive, so events sharing the bound
// timestamp are de-duplicated by id; when a whole page sits on a single
// timestamp the cursor walks the remainder of that timestamp by id before
// advancing past it.
//
// AssignmentCursor is not safe for concurrent use.
type AssignmentCursor struct {
	fetcher   Fetcher
	poolID    string
	eventType api.EventType
	pageLimit int

	state cursorState
}

// NewAssignmentCursor creates a cursor positioned at since: only events with
// an event time at or after since are returned.
func NewAssignmentCursor(fetcher Fetcher, poolID string, eventType api.EventType, since time.Time) *AssignmentCursor {
	return &AssignmentCursor{
		fetcher:   fetcher,
		poolID:    poolID,
		eventType: eventType,
		pageLimit: DefaultPageLimit,
		state: cursorState{
			since: since,
			seen:  make(map[string]struct{}),
		},
	}
}

// Fetch returns all events newer than the bookmark, in event-time order, and
// advances the bookmark past them. On error the bookmark is unchanged and the
// same events are returned by the next successful Fetch.
func (c *AssignmentCursor) Fetch(ctx context.Context) ([]api.AssignmentEvent, error) {
	staged := c.state.clone()
	var out []api.AssignmentEvent

	for {
		req := c.baseRequest()
		if staged.strict {
			t := staged.since
			req.TimeGT = &t
		} else {
			t := staged.since
			req.TimeGTE = &t
		}

		page, err := c.fetcher.FindAssignmentEvents(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("events: cursor %s/%s: %w", c.poolID, c.eventType, err)
		}
		if len(page.Items) == 0 {
			break
		}

		maxTime := page.Items[len(page.Items)-1].Time
		for _, ev := range page.Items {
			if _, ok := staged.seen[ev.ID]; ok {
				continue
			}
			out = append(out, ev)
			staged.seen[ev.ID] = struct{}{}
			staged.since = ev.Time
			staged.strict = false
		}

		if !page.HasMore {
			break
		}

		// A full page on one timestamp cannot advance the time bound.
		// Walk the rest of that timestamp by id, then move strictly past it.
		if page.Items[0].Time.Equal(maxTime) {
			more, err := c.fetchFixedTime(ctx, maxTime, &staged)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
			staged.since = maxTime
			staged.strict = true
		}

		// Only ids at the current boundary can reappear in the next page.
		boundary := make(map[string]struct{})
		for _, ev := range page.Items {
			if ev.Time.Equal(staged.since) {
				boundary[ev.ID] = struct{}{}
			}
		}
		staged.seen = boundary
	}

	c.state = staged
	return out, nil
}

// fetchFixedTime pages by id through all events at exactly time t.
func (c *AssignmentCursor) fetchFixedTime(ctx context.Context, t time.Time, staged *cursorState) ([]api.AssignmentEvent, error) {
	var out []api.AssignmentEvent
	idGt := ""

	for {
		req := c.baseRequest()
		lo, hi := t, t
		req.TimeGTE = &lo
		req.TimeLTE = &hi
		req.ByID = true
		req.IDGt = idGt

		page, err := c.fetcher.FindAssignmentEvents(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("events: cursor %s/%s: fixed-time page: %w", c.poolID, c.eventType, err)
		}
		if len(page.Items) == 0 {
			return out, nil
		}

		for _, ev := range page.Items {
			if _, ok := staged.seen[ev.ID]; ok {
				continue
			}
			out = append(out, ev)
			staged.seen[ev.ID] = struct{}{}
		}
		idGt = page.Items[len(page.Items)-1].ID

		if !page.HasMore {
			return out, nil
		}
	}
}

func (c *AssignmentCursor) baseRequest() api.AssignmentEventSearch {
	return api.AssignmentEventSearch{
		PoolID:    c.poolID,
		EventType: c.eventType,
		Limit:     c.pageLimit,
	}
}
