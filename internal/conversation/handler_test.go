package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTranscriptRouter(t *testing.T, transcripts *TranscriptStore) *chi.Mux {
	t.Helper()
	svc := NewService(NewEngine(nil), NewStateStore(time.Hour, nil), transcripts, &submitterStub{}, nil)
	handler := NewHandler(svc, nil)

	router := chi.NewRouter()
	router.Post("/conversations/start", handler.Start)
	router.Get("/conversations/{conversationID}/transcript", handler.Transcript)
	return router
}

func TestTranscriptEndpoint(t *testing.T) {
	router := newTranscriptRouter(t, newTestTranscriptStore(t))

	rec := httptest.NewRecorder()
	start := httptest.NewRequest(http.MethodPost, "/conversations/start", strings.NewReader(`{"message":"create a vm"}`))
	start = start.WithContext(requesterCtx())
	router.ServeHTTP(rec, start)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}
	var started Response
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/"+started.ConversationID+"/transcript", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript = %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Entries []TranscriptEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Entries) < 2 || payload.Entries[0].Body != "create a vm" {
		t.Fatalf("unexpected transcript: %+v", payload.Entries)
	}
}

func TestTranscriptEndpointUnknownConversationIsEmpty(t *testing.T) {
	router := newTranscriptRouter(t, newTestTranscriptStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/ghost/transcript", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript = %d", rec.Code)
	}
	var payload struct {
		Entries []TranscriptEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Entries) != 0 {
		t.Fatalf("expected empty transcript, got %+v", payload.Entries)
	}
}

func TestTranscriptEndpointDisabled(t *testing.T) {
	router := newTranscriptRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/transcript", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without transcripts, got %d", rec.Code)
	}
}
