package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stackvoice/provision-ai-platform/internal/compliance"
	"github.com/stackvoice/provision-ai-platform/internal/conversation"
	"github.com/stackvoice/provision-ai-platform/internal/cost"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	httpmiddleware "github.com/stackvoice/provision-ai-platform/internal/http/middleware"
	"github.com/stackvoice/provision-ai-platform/internal/template"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	DeploymentHandler   *deployment.Handler
	CostHandler         *cost.Handler
	TemplateHandler     *template.Handler
	AuditHandler        *compliance.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Requester endpoints (identified by requester headers)
	r.Group(func(requester chi.Router) {
		requester.Use(httpmiddleware.RequireRequester())
		if cfg.ConversationHandler != nil {
			requester.Route("/conversations", func(r chi.Router) {
				r.Post("/start", cfg.ConversationHandler.Start)
				r.Post("/message", cfg.ConversationHandler.Message)
				r.Get("/{conversationID}/transcript", cfg.ConversationHandler.Transcript)
			})
		}
		if cfg.DeploymentHandler != nil {
			requester.Get("/deployments", cfg.DeploymentHandler.ListRequests)
			requester.Get("/deployments/{requestID}", cfg.DeploymentHandler.GetRequest)
		}
		if cfg.CostHandler != nil {
			requester.Get("/costs", cfg.CostHandler.Spend)
		}
		if cfg.TemplateHandler != nil {
			requester.Post("/templates", cfg.TemplateHandler.Generate)
		}
	})

	// Approver endpoints (protected by admin JWT)
	if cfg.AdminAuthSecret != "" && cfg.DeploymentHandler != nil {
		r.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/approvals/decision", cfg.DeploymentHandler.Decision)
			admin.Post("/deployments/{requestID}/execute", cfg.DeploymentHandler.Execute)
			if cfg.AuditHandler != nil {
				admin.Get("/audit/events", cfg.AuditHandler.Events)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
