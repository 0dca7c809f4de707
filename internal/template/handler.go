package template

import (
	"encoding/json"
	"net/http"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Handler exposes template generation over HTTP.
type Handler struct {
	generator *Generator
	logger    *logging.Logger
}

// NewHandler creates a template handler.
func NewHandler(generator *Generator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		generator: generator,
		logger:    logger,
	}
}

// GenerateRequest is the POST /templates payload.
type GenerateRequest struct {
	ResourceType  string            `json:"resource_type"`
	ResourceName  string            `json:"resource_name"`
	Configuration map[string]string `json:"configuration"`
}

// GenerateResponse carries the accepted template body.
type GenerateResponse struct {
	Template string `json:"template"`
}

// Generate handles POST /templates.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		http.Error(w, "Template generation disabled", http.StatusNotImplemented)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ResourceType == "" || req.ResourceName == "" {
		http.Error(w, "resource_type and resource_name are required", http.StatusBadRequest)
		return
	}

	body, err := h.generator.Generate(r.Context(), Input{
		ResourceType:  req.ResourceType,
		ResourceName:  req.ResourceName,
		Configuration: req.Configuration,
	})
	if err != nil {
		h.logger.Error("template generation failed",
			"resource_type", req.ResourceType,
			"resource_name", req.ResourceName,
			"error", err,
		)
		http.Error(w, "Template generation failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(GenerateResponse{Template: body}); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
