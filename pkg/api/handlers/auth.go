package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/users"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auditTrail
	users     *users.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *users.Service, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:     userService,
		metrics:   m,
		validator: validator.New(),
	}
}

// Register godoc
// @Summary Register a new user
// @Description Create an account together with a new organization it administers
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.AuthResponse "User registered successfully"
// @Failure 400 {object} models.ErrorResponse "Invalid request or email taken"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	resp, err := h.users.Register(ctx, req)
	if err != nil {
		return errors.Respond(c, err)
	}

	h.metrics.RecordUserRegistered()
	h.recordSelf(c, audit.ActionUserRegister, resp.User)
	return c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary Log in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	resp, err := h.users.Login(c.Request().Context(), req)
	if err != nil {
		if domain.IsUnauthorized(err) {
			h.metrics.RecordLoginAttempt(false)
		}
		return errors.Respond(c, err)
	}

	h.metrics.RecordLoginAttempt(true)
	h.recordSelf(c, audit.ActionUserLogin, resp.User)
	return c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
	}

	profile, err := h.users.Me(c.Request().Context(), userID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// Invite godoc
// @Summary Invite an employee
// @Description Admin only. Creates an EMPLOYEE in the caller's organization.
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.InviteRequest true "New employee"
// @Success 201 {object} models.UserInfo
// @Failure 403 {object} models.LimitReachedResponse "Plan limit reached"
// @Router /auth/invite [post]
func (h *AuthHandler) Invite(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	var req models.InviteRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := h.users.Invite(ctx, orgID, req)
	if err != nil {
		return errors.Respond(c, err)
	}

	entry := audit.EntryFromContext(c, audit.ActionUserInvite)
	entry.ResourceType = "user"
	entry.ResourceID = strconv.Itoa(user.ID)
	entry.Metadata = map[string]any{"email": user.Email}
	h.record(c, entry)

	return c.JSON(http.StatusCreated, user)
}

// ListUsers returns the members of the caller's organization
func (h *AuthHandler) ListUsers(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	members, err := h.users.List(c.Request().Context(), orgID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, members)
}

// recordSelf records an event performed by the unauthenticated caller on its own account
func (h *AuthHandler) recordSelf(c echo.Context, action string, user *models.UserInfo) {
	if user == nil || user.OrganizationID == nil {
		return
	}
	entry := audit.EntryFromContext(c, action)
	entry.OrganizationID = *user.OrganizationID
	entry.UserID = &user.ID
	entry.ResourceType = "user"
	entry.ResourceID = strconv.Itoa(user.ID)
	h.record(c, entry)
}
