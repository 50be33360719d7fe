package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/assetdesk/pkg/api/errors"
	"github.com/jordanlanch/assetdesk/pkg/assets"
	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// AssetHandler handles asset endpoints
type AssetHandler struct {
	auditTrail
	assets    *assets.Service
	validator *validator.Validate
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(assetService *assets.Service) *AssetHandler {
	return &AssetHandler{
		assets:    assetService,
		validator: validator.New(),
	}
}

// List returns the organization's assets ordered by name
func (h *AssetHandler) List(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	list, err := h.assets.List(c.Request().Context(), orgID)
	if err != nil {
		return errors.Respond(c, err)
	}

	out := make([]models.AssetResponse, 0, len(list))
	for _, a := range list {
		out = append(out, a.Response())
	}
	return c.JSON(http.StatusOK, out)
}

// Create registers a new asset in the organization
func (h *AssetHandler) Create(c echo.Context) error {
	orgID, _ := middleware.TenantID(c)

	var req models.CreateAssetRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	asset, err := h.assets.Create(c.Request().Context(), orgID, req)
	if err != nil {
		return errors.Respond(c, err)
	}

	entry := audit.EntryFromContext(c, audit.ActionAssetCreate)
	entry.ResourceType = "asset"
	entry.ResourceID = strconv.Itoa(asset.ID)
	entry.Metadata = map[string]any{"serialNumber": asset.SerialNumber}
	h.record(c, entry)

	return c.JSON(http.StatusCreated, asset.Response())
}
