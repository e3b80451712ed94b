package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/config"
	"github.com/JonMunkholm/fleetdesk/internal/fleet"
	"github.com/JonMunkholm/fleetdesk/internal/logging"
	"github.com/JonMunkholm/fleetdesk/internal/notify"
	"github.com/JonMunkholm/fleetdesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	// Screen layouts, embedded unless VIEWS_DIR overrides them
	if err := fleet.Setup(cfg.Views.Dir); err != nil {
		slog.Error("failed to load screen layouts", "dir", cfg.Views.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("screens registered", "count", len(fleet.All()), "groups", len(fleet.Groups()))
	for _, group := range fleet.Groups() {
		slog.Debug("screen group", "group", group, "screens", len(fleet.ByGroup(group)))
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithRateLimit(float64(cfg.Backend.RequestsPerSecond), cfg.Backend.Burst),
	)
	if err != nil {
		slog.Error("failed to create fleet API client", "error", err)
		os.Exit(1)
	}
	if cfg.Backend.Token != "" {
		client.SetToken(cfg.Backend.Token)
	}

	inbox, err := fleet.NewInbox(client, fleet.Defaults{
		RowsPerPage:        cfg.Table.RowsPerPage,
		RowsPerPageOptions: cfg.Table.RowsPerPageOptions,
		Locale:             cfg.Table.Locale,
	})
	if err != nil {
		slog.Error("failed to create notification inbox", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := inbox.Load(ctx); err != nil {
		// The dashboard still serves the other screens; the inbox fills
		// from realtime events and the next reload.
		slog.Warn("initial notification load failed", "error", err)
	}

	hub := notify.NewHub(cfg.Security.AllowedOrigins, cfg.Realtime.PingInterval)
	server := web.NewServer(cfg, client, inbox, hub)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	go server.RunJobs(jobCtx)

	if cfg.Realtime.Enabled && cfg.Realtime.URL != "" {
		sub := notify.NewSubscriber(cfg.Realtime.URL, client.Store(), relay(inbox, hub),
			notify.WithReconnectDelay(cfg.Realtime.ReconnectDelay))
		go func() { _ = sub.Run(jobCtx) }()
	} else {
		slog.Info("realtime notifications disabled")
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// relay adds every realtime notification to the inbox and forwards it to
// connected browsers.
func relay(inbox *fleet.Inbox, hub *notify.Hub) notify.Handler {
	return notify.HandlerFunc(func(ctx context.Context, ev notify.Event) {
		if ev.Type != notify.EventNotification || ev.Notification == nil {
			return
		}
		log := logging.FromContext(ctx)
		if err := inbox.Add(*ev.Notification); err != nil {
			log.Error("add notification to inbox", "id", ev.Notification.ID, "error", err)
			return
		}
		log.Info("notification received", "id", ev.Notification.ID, "type", ev.Notification.Type)
		hub.Broadcast(ev)
	})
}
