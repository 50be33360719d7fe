package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/billing"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps the webhook payload read into memory
const maxWebhookBody = 1 << 20

// SubscriptionHandler handles plan, checkout, portal and webhook endpoints
type SubscriptionHandler struct {
	auditTrail
	billing   *billing.Service
	validator *validator.Validate
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(billingService *billing.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		billing:   billingService,
		validator: validator.New(),
	}
}

// Plans returns the public tier catalogue
func (h *SubscriptionHandler) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, h.billing.Plans())
}

// Status returns the caller's tier, billing status and usage
func (h *SubscriptionHandler) Status(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	status, err := h.billing.Status(c.Request().Context(), orgID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// CreateCheckout godoc
// @Summary Create Stripe checkout session
// @Description Starts a hosted checkout for a paid tier. The tier changes when the completion webhook arrives.
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CheckoutRequest true "Tier to purchase"
// @Success 200 {object} models.URLResponse
// @Failure 400 {object} models.ErrorResponse "Invalid tier or already on this plan"
// @Router /subscription/create-checkout [post]
func (h *SubscriptionHandler) CreateCheckout(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)
	email, _ := c.Get(middleware.KeyUserEmail).(string)

	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	resp, err := h.billing.CreateCheckout(c.Request().Context(), orgID, email, req.Tier)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Portal returns a Stripe customer portal URL
func (h *SubscriptionHandler) Portal(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	resp, err := h.billing.CreatePortal(c.Request().Context(), orgID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Webhook godoc
// @Summary Stripe webhook
// @Description Verifies the Stripe-Signature header against the raw body and applies the event.
// @Tags Subscription
// @Accept json
// @Produce json
// @Success 200 {object} models.WebhookResponse
// @Failure 400 {object} models.ErrorResponse "Signature verification failed"
// @Router /subscription/webhook [post]
func (h *SubscriptionHandler) Webhook(c echo.Context) error {
	// The body must not be bound or re-encoded before verification.
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Failed to read request body",
		})
	}

	err = h.billing.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if billing.IsSignatureError(err) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "webhook_error",
				Message: "Webhook Error: " + err.Error(),
			})
		}
		return errors.Respond(c, err)
	}

	return c.JSON(http.StatusOK, models.WebhookResponse{Received: true})
}

// DemoUpgrade switches tiers without payment when demo mode is enabled
func (h *SubscriptionHandler) DemoUpgrade(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	var req models.DemoUpgradeRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	status, err := h.billing.DemoUpgrade(c.Request().Context(), orgID, req.Tier)
	if err != nil {
		return errors.Respond(c, err)
	}

	entry := audit.EntryFromContext(c, audit.ActionSubscriptionChange)
	entry.ResourceType = "organization"
	entry.ResourceID = strconv.Itoa(orgID)
	entry.Metadata = map[string]any{"tier": status.Tier, "source": "demo"}
	h.record(c, entry)

	return c.JSON(http.StatusOK, status)
}
