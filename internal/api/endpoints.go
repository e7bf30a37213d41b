package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FindAssignmentEvents fetches one page of assignment events matching the
// search bounds, sorted by event time ascending.
// GET /v1/assignment-events
func (c *Client) FindAssignmentEvents(ctx context.Context, req AssignmentEventSearch) (*AssignmentEventList, error) {
	q := url.Values{}
	q.Set("pool_id", req.PoolID)
	q.Set("type", string(req.EventType))
	if req.ByID {
		q.Set("sort", "id")
	} else {
		q.Set("sort", "time")
	}
	if req.TimeGTE != nil {
		q.Set("time_gte", req.TimeGTE.UTC().Format(time.RFC3339Nano))
	}
	if req.TimeGT != nil {
		q.Set("time_gt", req.TimeGT.UTC().Format(time.RFC3339Nano))
	}
	if req.TimeLTE != nil {
		q.Set("time_lte", req.TimeLTE.UTC().Format(time.RFC3339Nano))
	}
	if req.IDGt != "" {
		q.Set("id_gt", req.IDGt)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	var resp AssignmentEventList
	if err := c.doRequest(ctx, http.MethodGet, "/v1/assignment-events?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// analyticsSubmission is the request body for POST /v1/analytics.
type analyticsSubmission struct {
	IdempotencyKey string             `json:"idempotency_key"`
	Requests       []AnalyticsRequest `json:"requests"`
}

// GetAnalytics submits analytics requests for asynchronous computation and
// returns the pending operation. Each submission carries a client-generated
// idempotency key so a retried POST never starts a second computation.
// POST /v1/analytics
func (c *Client) GetAnalytics(ctx context.Context, reqs []AnalyticsRequest) (*Operation, error) {
	if len(reqs) == 0 {
		return nil, errors.New("api: analytics: no requests")
	}
	body := analyticsSubmission{
		IdempotencyKey: uuid.NewString(),
		Requests:       reqs,
	}
	var op Operation
	if err := c.doRequest(ctx, http.MethodPost, "/v1/analytics", body, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperation fetches the current state of an asynchronous operation.
// GET /v1/operations/{operation_id}
func (c *Client) GetOperation(ctx context.Context, id string) (*Operation, error) {
	var op Operation
	path := fmt.Sprintf("/v1/operations/%s", url.PathEscape(id))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// operationInitialDelay is how long WaitOperation sleeps before the first
// status poll when the operation was submitted very recently.
const operationInitialDelay = 500 * time.Millisecond

// operationPollInterval is the delay between WaitOperation status polls.
const operationPollInterval = time.Second

// WaitOperation polls an operation until it reaches a terminal status or ctx
// is cancelled. Callers bound the total wait through ctx.
func (c *Client) WaitOperation(ctx context.Context, op *Operation) (*Operation, error) {
	if op.Completed() {
		return op, nil
	}

	if op.Started == nil || time.Since(*op.Started) < operationInitialDelay {
		if err := sleepCtx(ctx, operationInitialDelay); err != nil {
			return nil, err
		}
	}

	for {
		current, err := c.GetOperation(ctx, op.ID)
		if err != nil {
			return nil, err
		}
		if current.Completed() {
			return current, nil
		}
		if err := sleepCtx(ctx, operationPollInterval); err != nil {
			return nil, err
		}
	}
}

// GetRequester fetches the authenticated requester account.
// GET /v1/requester
func (c *Client) GetRequester(ctx context.Context) (*Requester, error) {
	var r Requester
	if err := c.doRequest(ctx, http.MethodGet, "/v1/requester", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetPool fetches a pool by id.
// GET /v1/pools/{pool_id}
func (c *Client) GetPool(ctx context.Context, id string) (*Pool, error) {
	var p Pool
	path := fmt.Sprintf("/v1/pools/%s", url.PathEscape(id))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
