package compliance

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

const maxQueryLimit = 500

// Handler exposes the audit trail to approvers.
type Handler struct {
	audit  *AuditService
	logger *logging.Logger
}

// NewHandler creates an audit handler. audit may be nil when no audit
// database is configured.
func NewHandler(audit *AuditService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{audit: audit, logger: logger}
}

// Events handles GET /audit/events. Filters: request_id, event_type, since,
// until (RFC 3339), limit.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		http.Error(w, "Audit trail disabled", http.StatusNotImplemented)
		return
	}

	filter := AuditFilter{
		RequestID: r.URL.Query().Get("request_id"),
		EventType: AuditEventType(r.URL.Query().Get("event_type")),
		Limit:     100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if limit > maxQueryLimit {
			limit = maxQueryLimit
		}
		filter.Limit = limit
	}
	for param, dst := range map[string]*time.Time{
		"since": &filter.StartTime,
		"until": &filter.EndTime,
	} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, param+" must be RFC 3339", http.StatusBadRequest)
			return
		}
		*dst = ts
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		http.Error(w, "Failed to query audit events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []AuditEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events}); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
