// internal/api/handler.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"portfolio-aggregator/internal/model"
)

// Portfolio is the aggregation façade the handlers serve from.
type Portfolio interface {
	EnhancedProjects(ctx context.Context) []model.EnhancedProject
	PortfolioStats(ctx context.Context) model.PortfolioStats
	UserProfile(ctx context.Context) model.UserProfile
}

// Handler is the container for API dependencies.
type Handler struct {
	portfolio Portfolio
	logger    *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(portfolio Portfolio, logger *slog.Logger) http.Handler {
	h := &Handler{
		portfolio: portfolio,
		logger:    logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/projects", h.getProjects)
		r.Get("/stats", h.getStats)
		r.Get("/profile", h.getProfile)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getProjects returns the aggregated project collection.
// GET /v1/projects
//
// The façade never fails; this path always answers 200 with a non-empty
// collection, possibly the fallback set.
func (h *Handler) getProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.portfolio.EnhancedProjects(r.Context())
	respondWithJSON(w, http.StatusOK, projects)
}

// getStats returns portfolio summary numbers.
// GET /v1/stats
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.portfolio.PortfolioStats(r.Context()))
}

// getProfile returns the portfolio owner's profile.
// GET /v1/profile
func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.portfolio.UserProfile(r.Context()))
}
