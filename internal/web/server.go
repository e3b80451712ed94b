// Package web provides the HTTP API that browsers use to drive table views
// over the fleet back-office screens.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/config"
	"github.com/JonMunkholm/fleetdesk/internal/fleet"
	"github.com/JonMunkholm/fleetdesk/internal/notify"
	"github.com/JonMunkholm/fleetdesk/internal/web/middleware"
)

// Server is the HTTP server of the dashboard.
type Server struct {
	cfg      *config.Config
	client   *backend.Client
	inbox    *fleet.Inbox
	hub      *notify.Hub
	defaults fleet.Defaults
	views    *viewStore

	limiter       *middleware.RateLimiter
	actionLimiter *middleware.RateLimiter

	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server. inbox and hub may be nil: without an inbox the
// notification screen is fetched like any other, and without a hub the
// websocket relay is not mounted.
func NewServer(cfg *config.Config, client *backend.Client, inbox *fleet.Inbox, hub *notify.Hub) *Server {
	s := &Server{
		cfg:    cfg,
		client: client,
		inbox:  inbox,
		hub:    hub,
		defaults: fleet.Defaults{
			RowsPerPage:        cfg.Table.RowsPerPage,
			RowsPerPageOptions: cfg.Table.RowsPerPageOptions,
			Locale:             cfg.Table.Locale,
		},
		views:  newViewStore(cfg.Table.ViewTTL, cfg.Table.MaxViews),
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute)
		s.actionLimiter = middleware.NewRateLimiter(cfg.Rate.ActionLimit)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler(rateLimited))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// The websocket relay stays outside the request timeout.
	if s.hub != nil {
		s.router.Get("/ws/notifications", s.hub.ServeHTTP)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(chimw.Compress(5))
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Screen catalogue
		r.Get("/screens", s.handleListScreens)
		r.Post("/screens/{screen}/views", s.handleMountView)

		// Mounted views
		r.Route("/views/{viewID}", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Delete("/", s.handleDeleteView)
			r.Post("/reload", s.handleReload)
			r.Get("/export", s.handleExport)

			// Layout and paging
			r.Put("/viewport", s.handleViewport)
			r.Put("/page", s.handlePage)

			// Filtering and sorting
			r.Put("/search", s.handleSearch)
			r.Post("/search/apply", s.handleApplySearch)
			r.Put("/filters/{field}", s.handleSetFilter)
			r.Delete("/filters", s.handleClearFilters)
			r.Post("/sort/{field}", s.handleSort)

			// Rows
			r.Post("/select-all", s.handleSelectAll)
			r.Route("/rows/{index}", func(r chi.Router) {
				r.Post("/select", s.handleToggleRow)
				r.Post("/tap", s.handleTap)
				r.Post("/click", s.handleClick)
				if s.actionLimiter != nil {
					r.With(s.actionLimiter.Handler(rateLimited)).Post("/actions/{action}", s.handleAction)
				} else {
					r.Post("/actions/{action}", s.handleAction)
				}
			})
		})
	})
}

// RunJobs runs the background jobs of the server until ctx is cancelled.
func (s *Server) RunJobs(ctx context.Context) {
	if s.limiter != nil {
		go s.limiter.RunCleanup(ctx)
		go s.actionLimiter.RunCleanup(ctx)
	}
	s.views.runSweeper(ctx, s.cfg.Table.SweepInterval)
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, closing browser sockets and every
// mounted view.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	s.views.closeAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, errRateLimited)
}
