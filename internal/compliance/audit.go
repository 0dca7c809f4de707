// Package compliance records an immutable audit trail of who asked for,
// approved, and executed every provisioning action.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies a lifecycle event in the audit trail.
type AuditEventType string

const (
	// EventRequestCreated is logged when a deployment request enters the store.
	EventRequestCreated AuditEventType = "deployment.request_created"
	// EventRequestApproved is logged when an approver accepts a request.
	EventRequestApproved AuditEventType = "deployment.approved"
	// EventRequestRejected is logged when an approver declines a request.
	EventRequestRejected AuditEventType = "deployment.rejected"
	// EventExecutionFinished is logged with the outcome of the command run.
	EventExecutionFinished AuditEventType = "deployment.execution_finished"
	// EventDispatchFailed is logged when the approval prompt could not be
	// published and was parked for re-dispatch.
	EventDispatchFailed AuditEventType = "deployment.dispatch_failed"
)

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	ID           string          `json:"id"`
	EventType    AuditEventType  `json:"event_type"`
	RequestID    string          `json:"request_id"`
	ActorID      string          `json:"actor_id,omitempty"`
	ResourceName string          `json:"resource_name,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditDetails carries event-specific fields.
type AuditDetails struct {
	ResourceType  string  `json:"resource_type,omitempty"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
	Outcome       string  `json:"outcome,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// AuditService writes and queries the audit trail.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event. A nil service is a no-op so callers can
// run without an audit database in development.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, request_id, actor_id, resource_name, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.RequestID,
		nullString(event.ActorID),
		nullString(event.ResourceName),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogRequestCreated records a new deployment request.
func (s *AuditService) LogRequestCreated(ctx context.Context, requestID, requesterID, resourceName, resourceType string, estimatedCost float64) error {
	details, _ := json.Marshal(AuditDetails{
		ResourceType:  resourceType,
		EstimatedCost: estimatedCost,
	})
	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventRequestCreated,
		RequestID:    requestID,
		ActorID:      requesterID,
		ResourceName: resourceName,
		Details:      details,
	})
}

// LogDecision records an approval or rejection by an approver.
func (s *AuditService) LogDecision(ctx context.Context, requestID, approverID string, approved bool) error {
	eventType := EventRequestApproved
	if !approved {
		eventType = EventRequestRejected
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType: eventType,
		RequestID: requestID,
		ActorID:   approverID,
	})
}

// LogExecutionFinished records the terminal outcome of a command run.
func (s *AuditService) LogExecutionFinished(ctx context.Context, requestID, resourceName, outcome, errDetail string) error {
	details, _ := json.Marshal(AuditDetails{Outcome: outcome, Error: errDetail})
	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventExecutionFinished,
		RequestID:    requestID,
		ResourceName: resourceName,
		Details:      details,
	})
}

// LogDispatchFailed records an approval publish that fell back to the outbox.
func (s *AuditService) LogDispatchFailed(ctx context.Context, requestID, reason string) error {
	details, _ := json.Marshal(AuditDetails{Error: reason})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDispatchFailed,
		RequestID: requestID,
		Details:   details,
	})
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	RequestID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// QueryEvents retrieves audit events, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `
		SELECT id, event_type, request_id, actor_id, resource_name, details, created_at
		FROM audit_events
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.RequestID != "" {
		query += fmt.Sprintf(" AND request_id = $%d", argIdx)
		args = append(args, filter.RequestID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var actorID, resourceName sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &e.RequestID, &actorID, &resourceName, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.ActorID = actorID.String
		e.ResourceName = resourceName.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
