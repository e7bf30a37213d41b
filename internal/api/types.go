package api

import (
	"time"
)

// ---------------------------------------------------------------------------
// Assignment events
//   GET /v1/assignment-events
// ---------------------------------------------------------------------------

// EventType identifies an assignment lifecycle transition.
type EventType string

const (
	EventCreated   EventType = "CREATED"
	EventSubmitted EventType = "SUBMITTED"
	EventAccepted  EventType = "ACCEPTED"
	EventRejected  EventType = "REJECTED"
	EventSkipped   EventType = "SKIPPED"
	EventExpired   EventType = "EXPIRED"
)

// AssignmentEvent records one assignment lifecycle transition in a pool.
type AssignmentEvent struct {
	ID           string    `json:"id"`
	PoolID       string    `json:"pool_id"`
	AssignmentID string    `json:"assignment_id"`
	Type         EventType `json:"type"`
	Time         time.Time `json:"time"`
}

// AssignmentEventSearch is the query for GET /v1/assignment-events.
// The server returns events sorted by event time ascending, or by id when
// ByID is set.
type AssignmentEventSearch struct {
	PoolID    string
	EventType EventType

	// TimeGTE / TimeGT / TimeLTE bound the event time.
	TimeGTE *time.Time
	TimeGT  *time.Time
	TimeLTE *time.Time

	// IDGt bounds the event id; used together with ByID to page through
	// events sharing one timestamp.
	IDGt string

	// ByID switches the sort order from event time to event id.
	ByID bool

	// Limit caps the page size. 0 means server default.
	Limit int
}

// AssignmentEventList is one page of assignment event search results.
type AssignmentEventList struct {
	Items   []AssignmentEvent `json:"items"`
	HasMore bool              `json:"has_more"`
}

// ---------------------------------------------------------------------------
// Pools and requester account
//   GET /v1/pools/{pool_id}
//   GET /v1/requester
// ---------------------------------------------------------------------------

// Pool is a set of tasks published to performers as a unit.
type Pool struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	PrivateName string     `json:"private_name"`
	Status      string     `json:"status"`
	Created     *time.Time `json:"created,omitempty"`
}

// Requester is the authenticated requester account.
type Requester struct {
	ID         string  `json:"id"`
	PublicName string  `json:"public_name"`
	Balance    float64 `json:"balance"`
}

// ---------------------------------------------------------------------------
// Analytics operations
//   POST /v1/analytics
//   GET  /v1/operations/{operation_id}
// ---------------------------------------------------------------------------

// Analytics request names accepted by POST /v1/analytics.
const (
	AnalyticsSubmittedCount       = "submitted_assignments_count"
	AnalyticsAcceptedCount        = "accepted_assignments_count"
	AnalyticsRejectedCount        = "rejected_assignments_count"
	AnalyticsSkippedCount         = "skipped_assignments_count"
	AnalyticsCompletionPercentage = "completion_percentage"
)

// AnalyticsRequest asks the platform to compute one named statistic for a
// subject resource (currently always a pool).
type AnalyticsRequest struct {
	Name      string `json:"name"`
	SubjectID string `json:"subject_id"`
}

// AnalyticsResult is one computed statistic inside a finished operation.
type AnalyticsResult struct {
	Name      string    `json:"name"`
	SubjectID string    `json:"subject_id"`
	Finished  time.Time `json:"finished"`
	Result    float64   `json:"result"`
}

// OperationStatus is the lifecycle state of an asynchronous operation.
type OperationStatus string

const (
	OperationPending OperationStatus = "PENDING"
	OperationRunning OperationStatus = "RUNNING"
	OperationSuccess OperationStatus = "SUCCESS"
	OperationFail    OperationStatus = "FAIL"
)

// Operation is an asynchronous server-side computation. Details is populated
// once the operation reaches a terminal status.
type Operation struct {
	ID        string            `json:"id"`
	Status    OperationStatus   `json:"status"`
	Submitted *time.Time        `json:"submitted,omitempty"`
	Started   *time.Time        `json:"started,omitempty"`
	Finished  *time.Time        `json:"finished,omitempty"`
	Details   []AnalyticsResult `json:"details,omitempty"`
}

// Completed reports whether the operation reached a terminal status.
func (o *Operation) Completed() bool {
	return o.Status == OperationSuccess || o.Status == OperationFail
}
