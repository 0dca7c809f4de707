package deployment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// MemoryStore is an in-memory Store for development and tests. It honors the
// same transition guard and timestamp-once semantics as the DynamoDB store.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]*Request
	logger *logging.Logger

	// unavailable simulates a lost backing store in tests.
	unavailable bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *logging.Logger) *MemoryStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryStore{
		items:  make(map[string]*Request),
		logger: logger,
	}
}

// SetUnavailable toggles simulated storage loss.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

func (s *MemoryStore) Create(_ context.Context, req *Request) error {
	if req == nil || req.RequestID == "" {
		return ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrStorageUnavailable
	}
	if _, exists := s.items[req.RequestID]; exists {
		return nil
	}
	req.Status = StatusPendingApproval
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	clone := *req
	s.items[req.RequestID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID, requesterID string) (*Request, error) {
	req, err := s.GetAny(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, ErrForbidden
	}
	return req, nil
}

func (s *MemoryStore) GetAny(_ context.Context, requestID string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, ErrStorageUnavailable
	}
	req, ok := s.items[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *MemoryStore) ApplyStatus(_ context.Context, in ApplyInput) (ApplyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ApplyOutcome{}, ErrStorageUnavailable
	}
	req, ok := s.items[in.RequestID]
	if !ok {
		return ApplyOutcome{}, ErrNotFound
	}

	if req.Status == in.NewStatus {
		clone := *req
		return ApplyOutcome{NoOpReason: NoOpAlreadyInState, Request: &clone}, nil
	}
	if !TransitionAllowed(req.Status, in.NewStatus) {
		s.logger.Warn("rejected illegal status transition",
			"request_id", in.RequestID,
			"from", req.Status,
			"to", in.NewStatus,
		)
		clone := *req
		return ApplyOutcome{NoOpReason: NoOpIllegalTransition, Request: &clone}, nil
	}

	now := time.Now().UTC()
	switch in.NewStatus {
	case StatusApproved:
		if req.ApprovedAt == nil {
			req.ApprovedAt = &now
			req.ApprovedBy = in.Actor
		}
	case StatusRejected:
		if req.RejectedAt == nil {
			req.RejectedAt = &now
			req.RejectedBy = in.Actor
		}
	case StatusCompleted, StatusFailed:
		if req.ExecutedAt == nil {
			req.ExecutedAt = &now
			req.Result = in.Result
		}
	}
	req.Status = in.NewStatus
	clone := *req
	return ApplyOutcome{Applied: true, Request: &clone}, nil
}

// ClaimExecution marks an approved, unclaimed request as executing. The
// check and the mark happen under the store lock, so of any number of
// concurrent claimants exactly one sees true.
func (s *MemoryStore) ClaimExecution(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return false, ErrStorageUnavailable
	}
	req, ok := s.items[requestID]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != StatusApproved || req.ExecutionStartedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	req.ExecutionStartedAt = &now
	return true, nil
}

func (s *MemoryStore) ListByRequester(_ context.Context, requesterID string, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 25
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, ErrStorageUnavailable
	}

	var requests []Request
	for _, req := range s.items {
		if req.RequesterID == requesterID {
			requests = append(requests, *req)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	if len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}
