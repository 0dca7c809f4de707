// Package deployment holds the durable, approval-gated record of every
// intended resource-provisioning action and its lifecycle.
package deployment

import (
	"context"
	"errors"
	"time"

	"github.com/stackvoice/provision-ai-platform/internal/lifecycle"
)

// Status is the wire-visible lifecycle state of a deployment request.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// statusTransitions is the only legal progression. Anything else is a no-op,
// which absorbs duplicate or out-of-order external callbacks.
var statusTransitions = lifecycle.Table[Status]{
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusCompleted, StatusFailed},
}

// TransitionAllowed reports whether from -> to is legal.
func TransitionAllowed(from, to Status) bool {
	return statusTransitions.Allowed(from, to)
}

var (
	// ErrNotFound indicates no request exists for the id.
	ErrNotFound = errors.New("deployment: request not found")
	// ErrForbidden indicates the record exists but belongs to another requester.
	ErrForbidden = errors.New("deployment: forbidden")
	// ErrStorageUnavailable indicates the backing store is unreachable; the
	// caller must not assume the request was recorded.
	ErrStorageUnavailable = errors.New("deployment: storage unavailable")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("deployment: validation failed")
)

// ExecutionResult is the terminal outcome payload attached on completion or
// failure. Status uses the execution-attempt vocabulary.
type ExecutionResult struct {
	Status  string `dynamodbav:"status" json:"status"` // success|partial|failed|timeout|error
	Output  string `dynamodbav:"output,omitempty" json:"output,omitempty"`
	Error   string `dynamodbav:"error,omitempty" json:"error,omitempty"`
	Partial bool   `dynamodbav:"partial,omitempty" json:"partial,omitempty"`
}

// Request is one durable deployment request. RequestID is the idempotency
// key for every later operation; each timestamp is written exactly once.
type Request struct {
	RequestID     string            `dynamodbav:"requestId" json:"request_id"`
	ResourceType  string            `dynamodbav:"resourceType" json:"resource_type"`
	ResourceName  string            `dynamodbav:"resourceName" json:"resource_name"`
	Configuration map[string]string `dynamodbav:"configuration" json:"configuration"`

	RequesterID    string `dynamodbav:"requesterId" json:"requester_id"`
	RequesterEmail string `dynamodbav:"requesterEmail" json:"requester_email"`
	RequesterName  string `dynamodbav:"requesterName" json:"requester_name"`

	EstimatedCost float64 `dynamodbav:"estimatedCost" json:"estimated_cost"`

	Status Status `dynamodbav:"status" json:"status"`

	CreatedAt  time.Time        `dynamodbav:"createdAt" json:"created_at"`
	ApprovedAt *time.Time       `dynamodbav:"approvedAt,omitempty" json:"approved_at,omitempty"`
	ApprovedBy string           `dynamodbav:"approvedBy,omitempty" json:"approved_by,omitempty"`
	RejectedAt *time.Time       `dynamodbav:"rejectedAt,omitempty" json:"rejected_at,omitempty"`
	RejectedBy string           `dynamodbav:"rejectedBy,omitempty" json:"rejected_by,omitempty"`
	// ExecutionStartedAt is set once, by whichever delivery wins the
	// execution claim. It never moves even if the execution itself fails.
	ExecutionStartedAt *time.Time       `dynamodbav:"executionStartedAt,omitempty" json:"execution_started_at,omitempty"`
	ExecutedAt         *time.Time       `dynamodbav:"executedAt,omitempty" json:"executed_at,omitempty"`
	Result             *ExecutionResult `dynamodbav:"result,omitempty" json:"result,omitempty"`
}

// ApplyInput describes one requested status transition.
type ApplyInput struct {
	RequestID string
	NewStatus Status
	Actor     string           // approver/rejecter identity, when relevant
	Result    *ExecutionResult // execution outcome, when relevant
}

// ApplyOutcome reports how a transition request was absorbed.
type ApplyOutcome struct {
	Applied    bool
	NoOpReason string
	Request    *Request
}

const (
	// NoOpAlreadyInState is returned when the same legal transition is
	// applied twice; the second call changes nothing.
	NoOpAlreadyInState = "already-in-state"
	// NoOpIllegalTransition is returned for transitions not adjacent to the
	// current status.
	NoOpIllegalTransition = "illegal-transition"
)

// Store is the durable request store contract.
type Store interface {
	// Create persists a new request with status pending_approval.
	Create(ctx context.Context, req *Request) error
	// Get returns the request, ErrNotFound, or ErrForbidden when the record
	// exists but requesterID mismatches (existence is hidden from others).
	Get(ctx context.Context, requestID, requesterID string) (*Request, error)
	// GetAny returns the request regardless of requester. For internal use
	// by the executor and reconciler only.
	GetAny(ctx context.Context, requestID string) (*Request, error)
	// ApplyStatus idempotently applies a legal transition; duplicate and
	// illegal transitions are no-ops, never errors.
	ApplyStatus(ctx context.Context, in ApplyInput) (ApplyOutcome, error)
	// ClaimExecution atomically marks an approved, unclaimed request as
	// executing. Exactly one caller per request observes true; concurrent
	// and repeated deliveries observe false.
	ClaimExecution(ctx context.Context, requestID string) (bool, error)
	// ListByRequester returns the requester's requests ordered by createdAt
	// descending, at most limit entries.
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]Request, error)
}

// Terminal answers whether a status ends the lifecycle.
func (s Status) Terminal() bool {
	return statusTransitions.Terminal(s)
}
