package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Service answers spend queries by shelling out to the provider CLI.
type Service struct {
	runner  executor.Runner
	cliPath string
	logger  *logging.Logger
}

func NewService(runner executor.Runner, cliPath string, logger *logging.Logger) *Service {
	if runner == nil {
		panic("cost: runner cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{runner: runner, cliPath: cliPath, logger: logger}
}

// Spend runs the usage query and aggregates the result.
func (s *Service) Spend(ctx context.Context, q Query) (Report, error) {
	result, err := s.runner.Run(ctx, BuildQueryCommand(s.cliPath, q))
	if err != nil {
		return Report{}, fmt.Errorf("cost: usage query: %w", err)
	}
	if result.ExitCode != 0 {
		return Report{}, fmt.Errorf("cost: usage query exited %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return ParseUsage([]byte(result.Stdout), q)
}

// Handler exposes spend summaries over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// SpendResponse is the spend summary payload. TopSpenders is present only
// when the query asked for it.
type SpendResponse struct {
	Report
	TopSpenders []string `json:"top_spenders,omitempty"`
}

// Spend handles GET /costs. A positive top parameter adds the n biggest
// spenders by resource name.
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, "Cost queries disabled", http.StatusNotImplemented)
		return
	}

	q := Query{
		ResourceGroup: r.URL.Query().Get("resource_group"),
		StartDate:     r.URL.Query().Get("start_date"),
		EndDate:       r.URL.Query().Get("end_date"),
	}
	report, err := h.service.Spend(r.Context(), q)
	if err != nil {
		h.logger.Error("spend query failed", "error", err)
		http.Error(w, "Failed to query spend", http.StatusBadGateway)
		return
	}

	resp := SpendResponse{Report: report}
	if top, _ := strconv.Atoi(r.URL.Query().Get("top")); top > 0 {
		resp.TopSpenders = report.TopSpenders(top)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
