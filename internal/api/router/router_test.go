package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stackvoice/provision-ai-platform/internal/approval"
	"github.com/stackvoice/provision-ai-platform/internal/conversation"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, executor.Request) executor.Result {
	return executor.Result{Outcome: executor.OutcomeSuccess}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	store := deployment.NewMemoryStore(logger)
	dispatcher := approval.NewDispatcher(approval.NewMemoryQueue(8), nil, logger)
	service := deployment.NewService(store, dispatcher, nil, nil, logger)
	reconciler := deployment.NewReconciler(store, nil, nil, nil, logger)
	execution := deployment.NewExecutionService(store, noopExecutor{}, reconciler, "az", logger)

	engine := conversation.NewEngine(logger)
	states := conversation.NewStateStore(30*time.Minute, logger)
	convSvc := conversation.NewService(engine, states, nil, service, logger)

	cfg := &Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(convSvc, logger),
		DeploymentHandler:   deployment.NewHandler(service, reconciler, execution, logger),
		AdminAuthSecret:     "router-test-secret",
	}

	return New(cfg)
}

func asRequester(req *http.Request) *http.Request {
	req.Header.Set("X-Requester-Id", "user-7")
	req.Header.Set("X-Requester-Email", "dev@example.com")
	req.Header.Set("X-Requester-Name", "Sam")
	return req
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "approver-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("router-test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterRequiresRequesterIdentity(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deployments", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without requester headers, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asRequester(httptest.NewRequest(http.MethodGet, "/deployments", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with requester headers, got %d", rr.Code)
	}
}

func TestRouterConversationStart(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"message": "I need a virtual machine"}`)
	req := asRequester(httptest.NewRequest(http.MethodPost, "/conversations/start", body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp conversation.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Error("expected a conversation ID")
	}
}

func TestRouterApproverRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"request_id": "missing", "approver_id": "approver-9", "approved": true}`)
	req := httptest.NewRequest(http.MethodPost, "/approvals/decision", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	body = strings.NewReader(`{"request_id": "missing", "approver_id": "approver-9", "approved": true}`)
	req = httptest.NewRequest(http.MethodPost, "/approvals/decision", body)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown request with valid token, got %d", rr.Code)
	}
}
