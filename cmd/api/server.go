package main

import (
	"net/http"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/assetdesk/pkg/container"
	custommiddleware "github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// newServer builds the Echo instance with the global middleware chain and all routes
func newServer(c *container.Container) *echo.Echo {
	cfg := c.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(custommiddleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(ec echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", custommiddleware.GetRequestID(ec),
			}
			if v.Error != nil {
				c.Logger.Error("request failed", append(fields, "error", v.Error)...)
				return nil
			}
			c.Logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	// Prometheus metrics middleware
	e.Use(c.Metrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))

	securityCfg := custommiddleware.DefaultSecurityHeadersConfig()
	securityCfg.HSTS = cfg.IsProduction()
	e.Use(custommiddleware.SecurityHeaders(securityCfg))

	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit("2M"))

	// Global rate limiting per client IP
	e.Use(c.RateLimiter.RateLimitMiddleware())

	e.GET("/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]any{
			"name":        "AssetDesk API",
			"version":     version,
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	c.RegisterRoutes(e)

	return e
}
