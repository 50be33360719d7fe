package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the API and its dependencies
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a health handler. cache may be nil when Redis is disabled.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health returns 200 when the database answers and 503 otherwise.
// A failing cache only degrades the status.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{
		"status":   "ok",
		"database": "ok",
		"cache":    "disabled",
	}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		resp["status"] = "unavailable"
		resp["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		resp["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			resp["cache"] = "unreachable"
			if code == http.StatusOK {
				resp["status"] = "degraded"
			}
		}
	}

	return c.JSON(code, resp)
}
