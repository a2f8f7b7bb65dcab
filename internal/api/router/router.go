package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/lead-crm/internal/auth"
	httpmiddleware "github.com/wolfman30/lead-crm/internal/http/middleware"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

// Pinger reports backend health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	AuthHandler        *auth.Handler
	Verifier           auth.Verifier
	SubmitLimiter      *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	HealthChecker      Pinger
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthChecker))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.AuthHandler != nil {
			api.Post("/auth/login", cfg.AuthHandler.Login)
		}
		if cfg.LeadsHandler == nil {
			return
		}

		api.Route("/leads", func(leadRoutes chi.Router) {
			submit := http.Handler(http.HandlerFunc(cfg.LeadsHandler.Submit))
			if cfg.SubmitLimiter != nil {
				submit = httpmiddleware.RateLimit(cfg.SubmitLimiter)(submit)
			}
			leadRoutes.Method(http.MethodPost, "/", submit)

			leadRoutes.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminAuth(cfg.Verifier))
				admin.Get("/", cfg.LeadsHandler.List)
				admin.Get("/summary", cfg.LeadsHandler.Summary)
				admin.Route("/{id}", func(lead chi.Router) {
					lead.Get("/", cfg.LeadsHandler.Get)
					lead.Put("/", cfg.LeadsHandler.Update)
					lead.Patch("/", cfg.LeadsHandler.Update)
					lead.Delete("/", cfg.LeadsHandler.Delete)
					lead.Post("/notes", cfg.LeadsHandler.AddNote)
					lead.Get("/notes", cfg.LeadsHandler.ListNotes)
				})
			})
		})
	})

	return r
}

func healthHandler(checker Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
