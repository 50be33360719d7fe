package container

import (
	"context"
	"fmt"

	"github.com/jordanlanch/assetdesk/config"
	"github.com/jordanlanch/assetdesk/pkg/analytics"
	"github.com/jordanlanch/assetdesk/pkg/archive"
	"github.com/jordanlanch/assetdesk/pkg/api/handlers"
	"github.com/jordanlanch/assetdesk/pkg/assets"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/billing"
	"github.com/jordanlanch/assetdesk/pkg/cache"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/email"
	"github.com/jordanlanch/assetdesk/pkg/export"
	"github.com/jordanlanch/assetdesk/pkg/jobs"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/jordanlanch/assetdesk/pkg/slack"
	"github.com/jordanlanch/assetdesk/pkg/tickets"
	"github.com/jordanlanch/assetdesk/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the pre-built dependencies handed to New.
// Nil fields fall back to what the config describes.
type Deps struct {
	Logger   logger.Logger
	DB       *database.Client
	Cache    *cache.Client         // nil disables caching
	Stripe   billing.StripeAPI     // nil builds a client when Stripe is configured
	Email    email.Client          // nil builds a SendGrid client when an API key is set
	Archive  archive.ObjectStore   // nil disables the ticket archive
	Slack    slack.Client          // nil builds a webhook client when a URL is set
	Registry prometheus.Registerer // nil uses the default registry
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger logger.Logger

	// Infrastructure
	DB       *database.Client
	Cache    *cache.Client
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Plans
	Catalog *plans.Catalog
	Gate    *plans.Gate

	// Services
	OrganizationService *organization.Service
	UserService         *users.Service
	AssetService        *assets.Service
	TicketService       *tickets.Service
	AnalyticsService    *analytics.Service
	EmailService        *email.Service
	BillingService      *billing.Service
	ExportService       *export.Service
	AuditService        *audit.Service
	ArchiveService      *archive.Service
	SlackService        *slack.Service

	RateLimiter *middleware.RateLimiter
	Jobs        *jobs.CronManager

	// Handlers
	AuthHandler         *handlers.AuthHandler
	AssetHandler        *handlers.AssetHandler
	TicketHandler       *handlers.TicketHandler
	AnalyticsHandler    *handlers.AnalyticsHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	HealthHandler       *handlers.HealthHandler
	AuditHandler        *handlers.AuditHandler
}

// Open connects to the database and the optional cache described by cfg
// and runs the schema migration.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Deps, error) {
	deps := Deps{Logger: log}

	var ssl *database.SSLConfig
	if cfg.DatabaseDriver == "postgres" && cfg.DBSSLMode != "" {
		ssl = &database.SSLConfig{
			Mode:         cfg.DBSSLMode,
			CertPath:     cfg.DBSSLCertPath,
			KeyPath:      cfg.DBSSLKeyPath,
			RootCertPath: cfg.DBSSLRootCertPath,
		}
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, database.DefaultPoolConfig(), ssl)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return deps, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return deps, fmt.Errorf("failed to migrate database: %w", err)
	}
	deps.DB = db

	if cfg.RedisURL != "" {
		cacheClient, err := cache.NewClient(cfg.RedisURL, log)
		if err != nil {
			// Caching is optional; the API keeps serving without it
			log.Warn("Cache unavailable, continuing without it", "error", err)
		} else {
			deps.Cache = cacheClient
		}
	}

	if cfg.ArchiveEnabled() {
		store, err := archive.NewS3Store(ctx, archive.S3Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.ArchiveS3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			log.Warn("Ticket archive unavailable", "error", err)
		} else {
			deps.Archive = store
		}
	}

	log.Info("Infrastructure initialized",
		"database", cfg.DatabaseDriver,
		"cache", deps.Cache != nil,
		"archive", deps.Archive != nil)

	return deps, nil
}

// New creates and initializes all application dependencies
func New(cfg *config.Config, deps Deps) *Container {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		DB:      deps.DB,
		Cache:   deps.Cache,
		Metrics: metrics.New(deps.Registry),
	}

	c.Gatherer = prometheus.DefaultGatherer
	if g, ok := deps.Registry.(prometheus.Gatherer); ok {
		c.Gatherer = g
	}

	c.initServices(deps)
	c.initHandlers()
	c.initJobs()

	c.Logger.Info("Container initialized successfully",
		"environment", cfg.APIEnvironment,
		"stripe", c.BillingService.Enabled(),
		"cache", c.Cache != nil)

	return c
}

// initServices initializes all domain services
func (c *Container) initServices(deps Deps) {
	cfg := c.Config

	c.Catalog = plans.NewCatalog(cfg.StripePriceProID, cfg.StripePriceEnterpriseID)
	c.OrganizationService = organization.NewService(c.DB)
	c.Gate = plans.NewGate(c.Catalog, c.OrganizationService)
	c.AuditService = audit.NewService(c.DB, c.Logger)

	if deps.Email != nil {
		c.EmailService = email.NewWithClient(cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, deps.Email, c.Logger)
	} else {
		c.EmailService = email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, cfg.SendGridAPIKey, c.Logger)
	}
	c.EmailService.SetMetrics(c.Metrics)

	c.UserService = users.NewService(c.DB, c.OrganizationService, cfg.JWTSecret, cfg.JWTExpirationHours, c.Logger)
	c.UserService.SetEmailSender(c.EmailService)

	c.AssetService = assets.NewService(c.DB)

	// A nil *cache.Client must not reach the services as a non-nil interface
	var cacheRepo domain.CacheRepository
	if c.Cache != nil {
		cacheRepo = c.Cache
	}
	c.AnalyticsService = analytics.NewService(c.DB, cacheRepo, c.Logger)
	c.AssetService.SetInvalidator(c.AnalyticsService)
	c.AnalyticsService.SetMetrics(c.Metrics)

	slackClient := deps.Slack
	if slackClient == nil && cfg.SlackWebhookURL != "" {
		slackClient = slack.NewWebhookClient(cfg.SlackWebhookURL)
	}
	if slackClient != nil {
		c.SlackService = slack.NewService(slackClient, c.OrganizationService, c.Logger)
	}

	c.TicketService = tickets.NewService(c.DB, c.AssetService, c.UserService, c.Logger)
	c.TicketService.SetEmailSender(c.EmailService)
	c.TicketService.SetInvalidator(c.AnalyticsService)
	c.TicketService.SetMetrics(c.Metrics)
	if c.SlackService != nil {
		c.TicketService.SetChatNotifier(c.SlackService)
	}

	api := deps.Stripe
	if api == nil && cfg.StripeEnabled() {
		api = billing.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}
	c.BillingService = billing.NewService(api, c.OrganizationService, c.UserService, c.Catalog, billing.Config{
		FrontendURL: cfg.FrontendURL,
		DemoMode:    cfg.DemoMode,
	}, c.Logger)
	c.BillingService.SetEmailSender(c.EmailService)
	c.BillingService.SetMetrics(c.Metrics)
	c.BillingService.SetCache(cacheRepo)
	c.BillingService.SetAudit(c.AuditService)
	if c.SlackService != nil {
		c.BillingService.SetChatNotifier(c.SlackService)
	}

	c.ExportService = export.NewService(c.TicketService)
	if deps.Archive != nil {
		c.ArchiveService = archive.NewService(deps.Archive, c.ExportService, c.OrganizationService, cfg.ArchiveRetentionDays, c.Logger)
	}

	c.RateLimiter = middleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	c.Logger.Info("Services initialized",
		"ticket_service", "ready",
		"billing_service", "ready",
		"analytics_service", "ready")
}

// initHandlers initializes all HTTP handlers
func (c *Container) initHandlers() {
	c.AuthHandler = handlers.NewAuthHandler(c.UserService, c.Metrics)
	c.AssetHandler = handlers.NewAssetHandler(c.AssetService)
	c.TicketHandler = handlers.NewTicketHandler(c.TicketService, c.ExportService)
	c.AnalyticsHandler = handlers.NewAnalyticsHandler(c.AnalyticsService)
	c.SubscriptionHandler = handlers.NewSubscriptionHandler(c.BillingService)
	c.AuditHandler = handlers.NewAuditHandler(c.AuditService)

	c.AuthHandler.SetAudit(c.AuditService)
	c.AssetHandler.SetAudit(c.AuditService)
	c.TicketHandler.SetAudit(c.AuditService)
	c.SubscriptionHandler.SetAudit(c.AuditService)

	if c.Cache != nil {
		c.HealthHandler = handlers.NewHealthHandler(c.DB, c.Cache)
	} else {
		c.HealthHandler = handlers.NewHealthHandler(c.DB, nil)
	}
}

// initJobs registers the background jobs. The scheduler is started by the caller.
func (c *Container) initJobs() {
	c.Jobs = jobs.NewCronManager(nil)

	if c.BillingService.Enabled() && c.Config.SubscriptionSyncSchedule != "" {
		if err := c.Jobs.AddSubscriptionSync(c.Config.SubscriptionSyncSchedule, c.BillingService); err != nil {
			c.Logger.Error("Failed to schedule subscription sync", "error", err)
		}
	}
	if c.ArchiveService != nil && c.Config.ArchiveSchedule != "" {
		if err := c.Jobs.AddTicketArchive(c.Config.ArchiveSchedule, c.ArchiveService); err != nil {
			c.Logger.Error("Failed to schedule ticket archive", "error", err)
		}
	}
	if err := c.Jobs.AddVisitorCleanup("@every 3m", c.RateLimiter); err != nil {
		c.Logger.Error("Failed to schedule visitor cleanup", "error", err)
	}
	if err := c.Jobs.AddDBStats("@every 30s", func() {
		c.Metrics.UpdateDBConnections(c.DB.Stats().OpenConnections)
	}); err != nil {
		c.Logger.Error("Failed to schedule db stats", "error", err)
	}
}

// Close waits for pending notifications and closes all connections
func (c *Container) Close() error {
	c.Logger.Info("Closing container resources")

	c.TicketService.Wait()

	var errs []error
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Error("Failed to close cache", "error", err)
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error("Failed to close database", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing container: %v", errs)
	}

	c.Logger.Info("Container closed successfully")
	return nil
}
