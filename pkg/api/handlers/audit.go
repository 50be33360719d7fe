package handlers

import (
	"net/http"
	"strconv"

	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// auditTrail is embedded by handlers that record audit entries.
// Without a service nothing is recorded.
type auditTrail struct {
	audit *audit.Service
}

// SetAudit sets the audit log service
func (a *auditTrail) SetAudit(s *audit.Service) { a.audit = s }

func (a *auditTrail) record(c echo.Context, entry audit.LogEntry) {
	if entry.OrganizationID == 0 {
		return
	}
	a.audit.Record(c.Request().Context(), entry)
}

// AuditHandler handles audit log endpoints
type AuditHandler struct {
	audit *audit.Service
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{audit: auditService}
}

// List godoc
// @Summary List audit log entries
// @Description Admin only. Newest first.
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries (default 50, max 200)"
// @Success 200 {array} models.AuditLogResponse
// @Router /audit-logs [get]
func (h *AuditHandler) List(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	entries, err := h.audit.List(c.Request().Context(), orgID, limit)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
