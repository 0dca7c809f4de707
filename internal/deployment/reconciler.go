package deployment

import (
	"context"
	"fmt"

	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/internal/observability/metrics"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Reconciler translates external events, approver decisions and execution
// outcomes, into store status transitions. All idempotency lives in the
// store's ApplyStatus; the reconciler only reacts when a transition actually
// applied, so duplicate callbacks never double-notify or double-audit.
// ExecutionEnqueuer hands an approved request off to the execution pipeline.
type ExecutionEnqueuer interface {
	Enqueue(ctx context.Context, requestID string) error
}

type Reconciler struct {
	store      Store
	audit      Auditor
	notifier   Notifier
	executions ExecutionEnqueuer
	metrics    *metrics.DeploymentMetrics
	logger     *logging.Logger
}

func NewReconciler(store Store, audit Auditor, notifier Notifier, m *metrics.DeploymentMetrics, logger *logging.Logger) *Reconciler {
	if store == nil {
		panic("deployment: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:    store,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// WithExecutionEnqueuer makes every newly approved request enqueue an
// execution job. Enqueue failures are logged, not surfaced; the request
// stays approved and the synchronous execute endpoint remains available.
func (r *Reconciler) WithExecutionEnqueuer(e ExecutionEnqueuer) *Reconciler {
	r.executions = e
	return r
}

// ApplyDecision records an approver's verdict.
func (r *Reconciler) ApplyDecision(ctx context.Context, requestID, approverID string, approved bool) (ApplyOutcome, error) {
	newStatus := StatusApproved
	if !approved {
		newStatus = StatusRejected
	}

	outcome, err := r.store.ApplyStatus(ctx, ApplyInput{
		RequestID: requestID,
		NewStatus: newStatus,
		Actor:     approverID,
	})
	if err != nil {
		return outcome, fmt.Errorf("deployment: apply decision: %w", err)
	}
	r.metrics.ObserveStatusApplied(string(newStatus), outcome.Applied)

	if !outcome.Applied {
		r.logger.Info("decision absorbed as no-op",
			"request_id", requestID,
			"status", newStatus,
			"reason", outcome.NoOpReason,
		)
		return outcome, nil
	}

	if r.audit != nil {
		if auditErr := r.audit.LogDecision(ctx, requestID, approverID, approved); auditErr != nil {
			r.logger.Error("audit write failed", "request_id", requestID, "error", auditErr)
		}
	}
	if r.notifier != nil {
		if notifyErr := r.notifier.NotifyDecision(ctx, outcome.Request); notifyErr != nil {
			r.logger.Error("decision notification failed", "request_id", requestID, "error", notifyErr)
		}
	}
	if approved && r.executions != nil {
		if enqErr := r.executions.Enqueue(ctx, requestID); enqErr != nil {
			r.logger.Error("execution enqueue failed", "request_id", requestID, "error", enqErr)
		}
	}

	r.logger.Info("decision applied",
		"request_id", requestID,
		"status", newStatus,
		"approver_id", approverID,
	)
	return outcome, nil
}

// ApplyExecution records the execution outcome against the request. Success
// and partial both complete the request; partial is flagged on the stored
// result. Everything else fails it.
func (r *Reconciler) ApplyExecution(ctx context.Context, requestID string, res executor.Result) (ApplyOutcome, error) {
	newStatus, stored := classifyExecution(res)

	outcome, err := r.store.ApplyStatus(ctx, ApplyInput{
		RequestID: requestID,
		NewStatus: newStatus,
		Result:    stored,
	})
	if err != nil {
		return outcome, fmt.Errorf("deployment: apply execution: %w", err)
	}
	r.metrics.ObserveStatusApplied(string(newStatus), outcome.Applied)
	r.metrics.ObserveExecution(string(res.Outcome), res.Duration.Seconds())

	if !outcome.Applied {
		r.logger.Info("execution result absorbed as no-op",
			"request_id", requestID,
			"outcome", res.Outcome,
			"reason", outcome.NoOpReason,
		)
		return outcome, nil
	}

	if r.audit != nil {
		if auditErr := r.audit.LogExecutionFinished(ctx, requestID, resourceName(outcome.Request), string(res.Outcome), res.Error); auditErr != nil {
			r.logger.Error("audit write failed", "request_id", requestID, "error", auditErr)
		}
	}
	if r.notifier != nil {
		if notifyErr := r.notifier.NotifyOutcome(ctx, outcome.Request); notifyErr != nil {
			r.logger.Error("outcome notification failed", "request_id", requestID, "error", notifyErr)
		}
	}

	r.logger.Info("execution result applied",
		"request_id", requestID,
		"status", newStatus,
		"outcome", res.Outcome,
	)
	return outcome, nil
}

func classifyExecution(res executor.Result) (Status, *ExecutionResult) {
	stored := &ExecutionResult{
		Status: string(res.Outcome),
		Output: res.Output,
		Error:  res.Error,
	}
	switch res.Outcome {
	case executor.OutcomeSuccess:
		return StatusCompleted, stored
	case executor.OutcomePartial:
		stored.Partial = true
		return StatusCompleted, stored
	default:
		return StatusFailed, stored
	}
}

func resourceName(req *Request) string {
	if req == nil {
		return ""
	}
	return req.ResourceName
}
