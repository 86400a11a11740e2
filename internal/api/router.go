package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth        *mw.Auth
	RateLimit   *mw.RateLimit
	CORSOrigins []string

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	ChatHandler             http.HandlerFunc
	ListThreadsHandler      http.HandlerFunc
	GetThreadHandler        http.HandlerFunc
	DeleteThreadHandler     http.HandlerFunc
	ListEscalationsHandler  http.HandlerFunc
	GetEscalationHandler    http.HandlerFunc
	CancelEscalationHandler http.HandlerFunc
	TestConfigHandler       http.HandlerFunc
	RefreshKnowledgeHandler http.HandlerFunc
	CacheStatsHandler       http.HandlerFunc
	CacheInvalidateHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS(deps.CORSOrigins))

	// Public endpoints
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/chat", orNotImplemented(deps.ChatHandler))

		r.Get("/threads", orNotImplemented(deps.ListThreadsHandler))
		r.Get("/threads/{threadID}", orNotImplemented(deps.GetThreadHandler))
		r.Delete("/threads/{threadID}", orNotImplemented(deps.DeleteThreadHandler))

		r.Get("/escalations", orNotImplemented(deps.ListEscalationsHandler))
		r.Get("/escalations/{ticketID}", orNotImplemented(deps.GetEscalationHandler))
		r.Post("/escalations/{ticketID}/cancel", orNotImplemented(deps.CancelEscalationHandler))

		r.Post("/config/test", orNotImplemented(deps.TestConfigHandler))
		r.Post("/knowledge/refresh", orNotImplemented(deps.RefreshKnowledgeHandler))

		r.Get("/cache/stats", orNotImplemented(deps.CacheStatsHandler))
		r.Post("/cache/invalidate", orNotImplemented(deps.CacheInvalidateHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
