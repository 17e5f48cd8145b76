package server

import (
	"context"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parashasongs/internal/config"
	"parashasongs/internal/handlers"
	"parashasongs/internal/handlers/api"
	"parashasongs/internal/middleware"
	"parashasongs/internal/moderation"
	"parashasongs/internal/visits"
)

// Deps are the services the routes are built on.
type Deps struct {
	DB        handlers.Backend
	Manager   *moderation.Manager
	Visits    *visits.Counter
	Reference *config.Reference
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(ctx context.Context, deps Deps) error {
	// Initialize middleware
	auth := middleware.NewModeratorAuth(s.Cfg)
	recordVisit := middleware.RecordVisit(deps.Visits, s.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB)
	linkHandler := api.NewLinkHandler(deps.Manager)
	moderationHandler := api.NewModerationHandler(deps.Manager)
	statsHandler := api.NewStatsHandler(deps.Manager, deps.Visits)
	referenceHandler := api.NewReferenceHandler(deps.Reference)

	// Health and metrics
	s.App.Get("/healthz", healthHandler.Liveness)
	s.App.Get("/readyz", healthHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Moderator login
	if s.Cfg.IsOIDCEnabled() {
		authHandler, err := handlers.NewAuthHandler(ctx, s.Cfg, s.Logger)
		if err != nil {
			return err
		}
		s.App.Get("/auth/login", authHandler.Login)
		s.App.Get("/auth/callback", authHandler.Callback)
		s.App.Get("/auth/logout", authHandler.Logout)
	} else {
		s.Logger.Info("OIDC moderator login disabled, set OIDC_ISSUER and OIDC_CLIENT_ID to enable")
	}

	// Approval links from notification emails
	s.App.Get("/approve/:token", s.limit, moderationHandler.Redeem)

	// Public API
	s.App.Get("/api/parashot", referenceHandler.Parashot)
	s.App.Get("/api/books", referenceHandler.Books)
	s.App.Get("/api/parasha/:id/links", recordVisit, linkHandler.ByParasha)
	s.App.Get("/api/tanach/:book/:chapter/links", recordVisit, linkHandler.ByTanach)
	s.App.Get("/api/stats", statsHandler.Show)
	s.App.Post("/api/links", s.limit, auth.OptionalModerator, linkHandler.Submit)

	// Moderator API
	s.App.Get("/api/moderation/pending", auth.RequireModerator, moderationHandler.ListPending)
	s.App.Post("/api/moderation/:id/approve", auth.RequireModerator, moderationHandler.Approve)
	s.App.Post("/api/moderation/:id/reject", auth.RequireModerator, moderationHandler.Reject)
	s.App.Delete("/api/links/:id", auth.RequireModerator, moderationHandler.DeleteLink)
	s.App.Delete("/api/songs/:id", auth.RequireModerator, moderationHandler.DeleteSong)

	return nil
}
