package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/labstack/echo/v4"
)

// PlanLimit rejects the request when the organization cannot create one more
// resource of kind under its plan. On success the resolved subscription is
// stored under "subscription".
// Must be used AFTER AttachOrganization and RequireOrganization.
func PlanLimit(gate *plans.Gate, kind plans.Kind, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID, ok := TenantID(c)
			if !ok {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   "organization_required",
					Message: "Organization context is required.",
				})
			}

			sub, err := gate.Check(c.Request().Context(), orgID, kind)
			if err != nil {
				var limitErr *domain.LimitError
				switch {
				case errors.As(err, &limitErr):
					m.RecordLimitRejection(limitErr.Kind, limitErr.Tier)
					return c.JSON(http.StatusForbidden, models.LimitReachedResponse{
						Error:        "limit_reached",
						Message:      limitErr.Message,
						CurrentCount: limitErr.Current,
						Limit:        limitErr.Limit,
						Tier:         limitErr.Tier,
					})
				case domain.IsSubscriptionInactive(err):
					return c.JSON(http.StatusForbidden, models.ErrorResponse{
						Error:   "subscription_inactive",
						Message: "Your subscription is not active. Please update your payment method.",
					})
				case domain.IsNotFound(err):
					return c.JSON(http.StatusNotFound, models.ErrorResponse{
						Error:   "not_found",
						Message: "Organization not found",
					})
				default:
					log.Printf("[PLAN LIMIT ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
					return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
						Error:   "internal_error",
						Message: "An internal error occurred",
					})
				}
			}

			c.Set(KeySubscription, sub)
			return next(c)
		}
	}
}

// GetSubscription returns the subscription resolved by PlanLimit
func GetSubscription(c echo.Context) (*plans.Subscription, bool) {
	sub, ok := c.Get(KeySubscription).(*plans.Subscription)
	return sub, ok
}
