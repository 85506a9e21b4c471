package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound and ErrSegmentNotFound are fatal to a batch run and
	// surfaced to the caller. They are never retried automatically.
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrBatchInProgress means another batch run holds the per-tenant lock.
	// Concurrent runs for one tenant can lose a read-decay-write update.
	ErrBatchInProgress = errors.New("batch update already in progress for tenant")
)

// AggregationError wraps an event-store query failure. Aggregation precedes
// any write, so the run left no partial state and is safe to retry.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("event aggregation failed: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// BatchError wraps a persistence failure mid-batch. The batch transaction has
// already been rolled back; re-running the same window is safe.
type BatchError struct {
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch update failed (rolled back): %v", e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// DecisionTableGapError means a score or predicted event fell outside every
// branch of a decision table. Silently defaulting would misclassify user
// intent, so this is raised loudly as a defect.
type DecisionTableGapError struct {
	Stage string // "predictive" or "prescriptive"
	Value string
}

func (e *DecisionTableGapError) Error() string {
	return fmt.Sprintf("%s decision table has no branch for %q", e.Stage, e.Value)
}
