// Command portal-session runs a session against a live portal API: it logs
// in with credentials from the environment, logs lifecycle events as the
// store's timers keep the session alive, and logs out on interrupt.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brightline/portal-sessions/internal/bootstrap"
	"github.com/brightline/portal-sessions/internal/events"
	"github.com/brightline/portal-sessions/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	email := os.Getenv("PORTAL_EMAIL")
	password := os.Getenv("PORTAL_PASSWORD")
	if email == "" || password == "" {
		return errors.New("PORTAL_EMAIL and PORTAL_PASSWORD are required")
	}

	logger.InfoContext(ctx, "starting portal session",
		"api_base_url", cfg.API.BaseURL,
		"storage_backend", cfg.Storage.Backend)

	store, bus, cleanup, err := bootstrap.NewSessionStore(bootstrap.StoreDeps{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	logLifecycleEvents(ctx, bus, logger)

	if err = store.Start(ctx); err != nil {
		return err
	}
	defer store.Stop()

	if !store.IsAuthenticated() {
		if _, err = store.Login(ctx, email, password); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reportLoop(gctx, store, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Detach from the interrupted context for the logout round-trip.
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store.Logout(logoutCtx)
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logLifecycleEvents mirrors bus events into the log.
func logLifecycleEvents(ctx context.Context, bus *events.Bus, logger *slog.Logger) {
	topics := []string{
		events.TopicLogin,
		events.TopicLogout,
		events.TopicSessionExpired,
		events.TopicSessionExtended,
		events.TopicTokenRefreshed,
	}
	for _, topic := range topics {
		if err := bus.Subscribe(topic, func(evt events.Event) {
			email := ""
			if evt.User != nil {
				email = evt.User.Email
			}
			logger.InfoContext(ctx, "session event", "topic", evt.Topic, "email", email)
		}); err != nil {
			logger.WarnContext(ctx, "subscribe failed", "topic", topic, "error", err)
		}
	}
}

// reportLoop periodically reports time remaining until the context ends.
func reportLoop(ctx context.Context, store *session.Store, logger *slog.Logger) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			logger.InfoContext(ctx, "session status",
				"authenticated", store.IsAuthenticated(),
				"remaining", store.SessionTimeRemaining().Round(time.Second))
		}
	}
}
