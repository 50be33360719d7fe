package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/export"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/tickets"
	"github.com/labstack/echo/v4"
)

// TicketHandler handles ticket endpoints
type TicketHandler struct {
	auditTrail
	tickets   *tickets.Service
	export    *export.Service
	validator *validator.Validate
	now       func() time.Time
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *tickets.Service, exportService *export.Service) *TicketHandler {
	return &TicketHandler{
		tickets:   ticketService,
		export:    exportService,
		validator: validator.New(),
		now:       time.Now,
	}
}

// Create godoc
// @Summary Report an asset failure
// @Tags Tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateTicketRequest true "Failure report"
// @Success 201 {object} models.TicketResponse
// @Failure 400 {object} models.ErrorResponse "Validation error or asset already has an open ticket"
// @Failure 404 {object} models.ErrorResponse "Asset not found"
// @Router /tickets [post]
func (h *TicketHandler) Create(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)
	userID, _ := middleware.UserID(c)

	var req models.CreateTicketRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid asset ID",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ticket, err := h.tickets.Create(c.Request().Context(), orgID, userID, req)
	if err != nil {
		return errors.Respond(c, err)
	}

	h.recordTicket(c, audit.ActionTicketCreate, ticket)
	return c.JSON(http.StatusCreated, ticket)
}

// List returns the organization's tickets, newest first
func (h *TicketHandler) List(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	list, err := h.tickets.List(c.Request().Context(), orgID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Close godoc
// @Summary Close a ticket
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Success 200 {object} models.TicketResponse
// @Failure 400 {object} models.ErrorResponse "Ticket is already closed"
// @Failure 404 {object} models.ErrorResponse "Ticket not found"
// @Router /tickets/{id}/close [patch]
func (h *TicketHandler) Close(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	id, err := models.ParseID(c.Param("id"))
	if err != nil {
		return errors.Respond(c, domain.NewValidationError("Invalid ticket ID"))
	}

	ticket, err := h.tickets.Close(c.Request().Context(), orgID, id)
	if err != nil {
		return errors.Respond(c, err)
	}

	h.recordTicket(c, audit.ActionTicketClose, ticket)
	return c.JSON(http.StatusOK, ticket)
}

// Export streams the organization's tickets as XLSX (default) or CSV
func (h *TicketHandler) Export(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return errors.Respond(c, err)
	}

	var buf bytes.Buffer
	if err := h.export.Tickets(c.Request().Context(), orgID, format, &buf); err != nil {
		return errors.Respond(c, err)
	}

	entry := audit.EntryFromContext(c, audit.ActionTicketExport)
	entry.Metadata = map[string]any{"format": string(format), "bytes": buf.Len()}
	h.record(c, entry)

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", format.Filename(h.now())))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *TicketHandler) recordTicket(c echo.Context, action string, ticket *models.TicketResponse) {
	entry := audit.EntryFromContext(c, action)
	entry.ResourceType = "ticket"
	entry.ResourceID = strconv.Itoa(ticket.ID)
	if ticket.AssetID != nil {
		entry.Metadata = map[string]any{"assetId": *ticket.AssetID}
	}
	h.record(c, entry)
}
