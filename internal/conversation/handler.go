package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Start handles POST /conversations/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.StartConversation(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		http.Error(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /conversations/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ProcessMessage(r.Context(), req)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "conversation_id is required"):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrConversationNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to process message", "error", err)
			http.Error(w, "Failed to process message", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Transcript handles GET /conversations/{conversationID}/transcript.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	entries, err := h.service.Transcript(r.Context(), conversationID, limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrTranscriptsDisabled):
			http.Error(w, "Transcripts disabled", http.StatusNotImplemented)
		default:
			h.logger.Error("failed to load transcript", "conversation_id", conversationID, "error", err)
			http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		}
		return
	}
	if entries == nil {
		entries = []TranscriptEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
