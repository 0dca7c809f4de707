package deployment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stackvoice/provision-ai-platform/internal/approval"
	"github.com/stackvoice/provision-ai-platform/internal/observability/metrics"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Publisher sends the approval prompt for a newly created request.
type Publisher interface {
	Publish(ctx context.Context, msg approval.Message) error
}

// Auditor records lifecycle events to the audit trail. Implementations must
// tolerate being called on a nil receiver.
type Auditor interface {
	LogRequestCreated(ctx context.Context, requestID, requesterID, resourceName, resourceType string, estimatedCost float64) error
	LogDecision(ctx context.Context, requestID, approverID string, approved bool) error
	LogExecutionFinished(ctx context.Context, requestID, resourceName, outcome, errDetail string) error
	LogDispatchFailed(ctx context.Context, requestID, reason string) error
}

// Notifier tells the requester about decisions and outcomes.
type Notifier interface {
	NotifyDecision(ctx context.Context, req *Request) error
	NotifyOutcome(ctx context.Context, req *Request) error
}

// SubmitInput carries everything needed to create a deployment request.
type SubmitInput struct {
	ResourceType   string
	ResourceName   string
	Configuration  map[string]string
	RequesterID    string
	RequesterEmail string
	RequesterName  string
	EstimatedCost  float64
}

// Service creates deployment requests and dispatches them for approval.
type Service struct {
	store     Store
	publisher Publisher
	audit     Auditor
	metrics   *metrics.DeploymentMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(store Store, publisher Publisher, audit Auditor, m *metrics.DeploymentMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("deployment: store cannot be nil")
	}
	if publisher == nil {
		panic("deployment: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		audit:     audit,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates the input, durably records the request as
// pending_approval, then publishes the approval prompt. A publish failure
// does not undo the request: it stays pending and the prompt is parked for
// re-dispatch, so Submit still succeeds.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	req := &Request{
		RequestID:      uuid.NewString(),
		ResourceType:   in.ResourceType,
		ResourceName:   in.ResourceName,
		Configuration:  in.Configuration,
		RequesterID:    in.RequesterID,
		RequesterEmail: in.RequesterEmail,
		RequesterName:  in.RequesterName,
		EstimatedCost:  in.EstimatedCost,
		Status:         StatusPendingApproval,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("deployment: submit request: %w", err)
	}
	s.metrics.ObserveRequestCreated()
	if s.audit != nil {
		if err := s.audit.LogRequestCreated(ctx, req.RequestID, req.RequesterID, req.ResourceName, req.ResourceType, req.EstimatedCost); err != nil {
			s.logger.Error("audit write failed", "request_id", req.RequestID, "error", err)
		}
	}

	msg := approval.Message{
		RequestID:      req.RequestID,
		ResourceType:   req.ResourceType,
		ResourceName:   req.ResourceName,
		Configuration:  req.Configuration,
		RequesterID:    req.RequesterID,
		RequesterEmail: req.RequesterEmail,
		RequesterName:  req.RequesterName,
		EstimatedCost:  req.EstimatedCost,
		CreatedAt:      req.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.metrics.ObserveDispatchFailure()
		s.logger.Error("approval dispatch failed, request stays pending",
			"request_id", req.RequestID,
			"error", err,
		)
		if s.audit != nil {
			if auditErr := s.audit.LogDispatchFailed(ctx, req.RequestID, err.Error()); auditErr != nil {
				s.logger.Error("audit write failed", "request_id", req.RequestID, "error", auditErr)
			}
		}
	}

	s.logger.Info("deployment request submitted",
		"request_id", req.RequestID,
		"resource_type", req.ResourceType,
		"resource_name", req.ResourceName,
		"requester_id", req.RequesterID,
	)
	return req, nil
}

// Get returns the request for its requester.
func (s *Service) Get(ctx context.Context, requestID, requesterID string) (*Request, error) {
	return s.store.Get(ctx, requestID, requesterID)
}

// List returns the requester's most recent requests.
func (s *Service) List(ctx context.Context, requesterID string, limit int) ([]Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByRequester(ctx, requesterID, limit)
}

func validateSubmit(in SubmitInput) error {
	var missing []string
	if in.ResourceType == "" {
		missing = append(missing, "resource_type")
	}
	if in.ResourceName == "" {
		missing = append(missing, "resource_name")
	}
	if in.RequesterID == "" {
		missing = append(missing, "requester_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
