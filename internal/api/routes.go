package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/orbitl/email-tracker/internal/tracking"
	"github.com/redis/go-redis/v9"
)

// RouterConfig carries the cross-cutting knobs for the HTTP surface.
type RouterConfig struct {
	// AllowedOrigins restricts dashboard endpoints (empty = open).
	AllowedOrigins []string
	// Redis enables tracking-endpoint rate limiting when non-nil.
	Redis *redis.Client
	// TrackRatePerMinute caps pixel/click hits per IP (0 = unlimited).
	TrackRatePerMinute int
}

// SetupRoutes wires the public tracking endpoints and the dashboard API
// onto one router.
func SetupRoutes(h *Handlers, track *tracking.Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RestrictOrigins(cfg.AllowedOrigins))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Public tracking protocol. Rate limiting applies only here; the
	// dashboard is already origin-restricted.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.Redis, cfg.TrackRatePerMinute))
		r.Get("/pixel", track.HandlePixel)
		r.Get("/click", track.HandleClick)
	})

	r.Get("/", h.HandleRoot)
	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.HandleStats)
		r.Get("/campaign/{id}", h.HandleCampaign)
		r.Post("/generate-snippet", h.HandleGenerateSnippet)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	return r
}
