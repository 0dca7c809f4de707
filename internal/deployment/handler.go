package deployment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stackvoice/provision-ai-platform/internal/identity"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Handler wires HTTP requests to the deployment services.
type Handler struct {
	service    *Service
	reconciler *Reconciler
	execution  *ExecutionService
	logger     *logging.Logger
}

// NewHandler creates a deployment handler. execution may be nil when the
// synchronous trigger is disabled.
func NewHandler(service *Service, reconciler *Reconciler, execution *ExecutionService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:    service,
		reconciler: reconciler,
		execution:  execution,
		logger:     logger,
	}
}

// DecisionRequest is the approval callback payload.
type DecisionRequest struct {
	RequestID  string `json:"request_id"`
	ApproverID string `json:"approver_id"`
	Approved   bool   `json:"approved"`
}

// DecisionResponse reports how the callback was absorbed.
type DecisionResponse struct {
	Applied    bool     `json:"applied"`
	NoOpReason string   `json:"no_op_reason,omitempty"`
	Request    *Request `json:"request,omitempty"`
}

// ExecuteRequest is the optional execution trigger payload. Approval
// notifications echo the request's resource fields; when present they are
// checked against the stored request so a garbled or stale callback cannot
// trigger the wrong resource. The command field is accepted for
// compatibility but never executed: the command is always rebuilt from the
// stored record.
type ExecuteRequest struct {
	Command       string `json:"command,omitempty"`
	ResourceName  string `json:"resource_name,omitempty"`
	ResourceGroup string `json:"resource_group,omitempty"`
	ResourceType  string `json:"resource_type,omitempty"`
}

// mismatch reports the first trigger field that contradicts the stored
// request, or "" when the trigger is consistent. Empty fields are not
// checked.
func (t ExecuteRequest) mismatch(stored *Request) string {
	switch {
	case t.ResourceName != "" && t.ResourceName != stored.ResourceName:
		return "resource_name does not match the stored request"
	case t.ResourceGroup != "" && t.ResourceGroup != stored.Configuration["resource_group"]:
		return "resource_group does not match the stored request"
	case t.ResourceType != "" && t.ResourceType != stored.ResourceType:
		return "resource_type does not match the stored request"
	}
	return ""
}

// ExecutionResponse is the synchronous execution trigger's report.
type ExecutionResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GetRequest handles GET /deployments/{requestID}. A request belonging to a
// different requester answers 404; existence is not revealed.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := h.service.Get(r.Context(), requestID, principal.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
			http.Error(w, "Not found", http.StatusNotFound)
		case errors.Is(err, ErrStorageUnavailable):
			http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("failed to load request", "request_id", requestID, "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, req)
}

// ListRequests handles GET /deployments.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	requests, err := h.service.List(r.Context(), principal.ID, limit)
	if err != nil {
		h.logger.Error("failed to list requests", "requester_id", principal.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []Request{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// Decision handles POST /approvals/decision, the approver callback. The
// endpoint is idempotent: a repeated or out-of-order callback answers 200
// with applied=false.
func (h *Handler) Decision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" || req.ApproverID == "" {
		http.Error(w, "request_id and approver_id are required", http.StatusBadRequest)
		return
	}

	outcome, err := h.reconciler.ApplyDecision(r.Context(), req.RequestID, req.ApproverID, req.Approved)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "Not found", http.StatusNotFound)
		case errors.Is(err, ErrStorageUnavailable):
			http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("failed to apply decision", "request_id", req.RequestID, "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, DecisionResponse{
		Applied:    outcome.Applied,
		NoOpReason: outcome.NoOpReason,
		Request:    outcome.Request,
	})
}

// Execute handles POST /deployments/{requestID}/execute. The body is
// optional.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	if h.execution == nil {
		http.Error(w, "Execution disabled", http.StatusNotImplemented)
		return
	}

	requestID := chi.URLParam(r, "requestID")

	var trigger ExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if trigger != (ExecuteRequest{}) {
		stored, err := h.execution.Lookup(r.Context(), requestID)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "Not found", http.StatusNotFound)
			case errors.Is(err, ErrStorageUnavailable):
				http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
			default:
				h.logger.Error("failed to load request", "request_id", requestID, "error", err)
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}
			return
		}
		if msg := trigger.mismatch(stored); msg != "" {
			http.Error(w, msg, http.StatusConflict)
			return
		}
	}

	// The caller's connection dropping must not kill a provisioning command
	// mid-flight; the executor's own timeout bounds the run.
	req, err := h.execution.Run(context.WithoutCancel(r.Context()), requestID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "Not found", http.StatusNotFound)
		case errors.Is(err, ErrNotApproved):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrStorageUnavailable):
			http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("execution failed", "request_id", requestID, "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	resp := ExecutionResponse{RequestID: req.RequestID, Status: string(req.Status)}
	if req.Result != nil {
		resp.Status = req.Result.Status
		resp.Output = req.Result.Output
		resp.Error = req.Result.Error
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
