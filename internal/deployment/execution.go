package deployment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// ErrNotApproved indicates an execution was requested for a request that has
// not been approved.
var ErrNotApproved = errors.New("deployment: request is not approved")

// CommandExecutor runs one provisioning command and classifies the outcome.
type CommandExecutor interface {
	Execute(ctx context.Context, req executor.Request) executor.Result
}

// ExecutionService runs approved requests and reconciles the outcome back
// into the store. It serves both the synchronous HTTP trigger and the queue
// worker.
type ExecutionService struct {
	store      Store
	exec       CommandExecutor
	reconciler *Reconciler
	cliPath    string
	logger     *logging.Logger
}

func NewExecutionService(store Store, exec CommandExecutor, reconciler *Reconciler, cliPath string, logger *logging.Logger) *ExecutionService {
	if store == nil {
		panic("deployment: store cannot be nil")
	}
	if exec == nil {
		panic("deployment: executor cannot be nil")
	}
	if reconciler == nil {
		panic("deployment: reconciler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ExecutionService{
		store:      store,
		exec:       exec,
		reconciler: reconciler,
		cliPath:    cliPath,
		logger:     logger,
	}
}

// Lookup fetches the stored request regardless of requester, for trigger
// validation.
func (s *ExecutionService) Lookup(ctx context.Context, requestID string) (*Request, error) {
	return s.store.GetAny(ctx, requestID)
}

// Run executes the request if it is approved. A request already in a
// terminal state returns its stored result unchanged, and the execution
// claim guarantees at most one delivery ever reaches the executor, which
// makes queue redeliveries and repeated triggers safe. Requests that were
// never approved return ErrNotApproved.
func (s *ExecutionService) Run(ctx context.Context, requestID string) (*Request, error) {
	req, err := s.store.GetAny(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status.Terminal() {
		s.logger.Info("request already terminal, skipping execution",
			"request_id", requestID,
			"status", req.Status,
		)
		return req, nil
	}
	if req.Status != StatusApproved {
		return nil, fmt.Errorf("%w: status is %s", ErrNotApproved, req.Status)
	}

	claimed, err := s.store.ClaimExecution(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// A concurrent delivery holds the claim. Report the current record
		// and let the winner finish.
		s.logger.Info("execution already claimed, skipping",
			"request_id", requestID,
		)
		return s.store.GetAny(ctx, requestID)
	}

	command, err := BuildCommand(req, s.cliPath)
	if err != nil {
		result := executor.Result{Outcome: executor.OutcomeError, Error: err.Error()}
		if _, applyErr := s.reconciler.ApplyExecution(ctx, requestID, result); applyErr != nil {
			return nil, applyErr
		}
		return s.store.GetAny(ctx, requestID)
	}

	result := s.exec.Execute(ctx, executor.Request{
		RequestID:     req.RequestID,
		Command:       command,
		ResourceName:  req.ResourceName,
		ResourceGroup: req.Configuration["resource_group"],
		ResourceType:  req.ResourceType,
	})

	outcome, err := s.reconciler.ApplyExecution(ctx, requestID, result)
	if err != nil {
		return nil, err
	}
	if outcome.Request != nil {
		return outcome.Request, nil
	}
	return s.store.GetAny(ctx, requestID)
}
