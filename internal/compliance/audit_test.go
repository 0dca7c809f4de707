package compliance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogDecisionApproved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewAuditService(db)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventRequestApproved), "req-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogDecision(context.Background(), "req-1", "approver-9", true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogExecutionFinishedCarriesOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewAuditService(db)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventExecutionFinished), "req-2", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogExecutionFinished(context.Background(), "req-2", "web01", "failed", "quota exceeded"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEventsByRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewAuditService(db)

	details, err := json.Marshal(AuditDetails{Outcome: "success"})
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "event_type", "request_id", "actor_id", "resource_name", "details", "created_at"}).
		AddRow("ev-1", string(EventExecutionFinished), "req-3", nil, "web01", details, time.Now().UTC())
	mock.ExpectQuery("SELECT id, event_type").WithArgs("req-3").WillReturnRows(rows)

	events, err := svc.QueryEvents(context.Background(), AuditFilter{RequestID: "req-3"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-3", events[0].RequestID)

	var decoded AuditDetails
	require.NoError(t, json.Unmarshal(events[0].Details, &decoded))
	assert.Equal(t, "success", decoded.Outcome)
}

func TestNilAuditServiceIsNoOp(t *testing.T) {
	var svc *AuditService
	assert.NoError(t, svc.LogDecision(context.Background(), "req-4", "approver", false))
}
