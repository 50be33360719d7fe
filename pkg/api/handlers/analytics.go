package handlers

import (
	"net/http"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/analytics"
	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/labstack/echo/v4"
)

// AnalyticsHandler handles the admin dashboard
type AnalyticsHandler struct {
	analytics *analytics.Service
	now       func() time.Time
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analyticsService, now: time.Now}
}

// Dashboard returns ticket totals, tickets per asset and the 7-day timeline
func (h *AnalyticsHandler) Dashboard(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	dashboard, err := h.analytics.Dashboard(c.Request().Context(), orgID, h.now())
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, dashboard)
}
