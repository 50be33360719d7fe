package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jordanlanch/assetdesk/config"
	"github.com/jordanlanch/assetdesk/pkg/container"
	"github.com/jordanlanch/assetdesk/pkg/logger"
)

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Port string `help:"Listen port, overrides API_PORT."`
}

// Run starts the server and blocks until SIGINT or SIGTERM
func (s *ServeCmd) Run(ctx context.Context, cfg *config.Config) error {
	if s.Port != "" {
		cfg.APIPort = s.Port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if flush := initSentry(cfg); flush != nil {
		defer flush()
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	deps, err := container.Open(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	c := container.New(cfg, deps)
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("⚠️  %v", err)
		}
	}()

	e := newServer(c)

	log.Printf("⏰ Starting scheduled jobs")
	c.Jobs.Start()

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 AssetDesk API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🔐 JWT expiration: %d hours", cfg.JWTExpirationHours)
	log.Printf("🌍 CORS: %v", cfg.CORSAllowedOrigins)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	if cfg.StripeEnabled() {
		log.Printf("💳 Stripe billing enabled (sync: %s)", cfg.SubscriptionSyncSchedule)
	} else {
		log.Printf("ℹ️  Stripe billing disabled (no secret key configured)")
	}
	if cfg.DemoMode {
		log.Printf("🧪 Demo mode enabled: plans can be switched without payment")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-quit.Done():
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Println("🛑 Shutting down server...")

	// Gracefully shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.Jobs.Stop(shutdownCtx)
	log.Println("✅ Cron jobs stopped")

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("✅ Server gracefully stopped")
	return nil
}

// initSentry initializes error tracking and returns the flush to defer, or nil when disabled
func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          "assetdesk@" + version,
		TracesSampleRate: 0.2,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Request bodies may carry passwords
			if event.Request != nil {
				event.Request.Data = ""
				delete(event.Request.Headers, "Authorization")
			}
			return event
		},
	})
	if err != nil {
		log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		return nil
	}

	log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
	return func() { sentry.Flush(2 * time.Second) }
}
