package errors

import (
	"errors"
	"log"
	"net/http"

	"github.com/jordanlanch/assetdesk/pkg/billing"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// ValidationError returns a 400 for a request body that failed binding or validation
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError logs err and returns a generic 500 without exposing internal details
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// Respond maps a service error to its HTTP response.
// Domain errors keep their client message; anything else is logged and becomes a 500.
func Respond(c echo.Context, err error) error {
	var limitErr *domain.LimitError
	if errors.As(err, &limitErr) {
		return c.JSON(http.StatusForbidden, models.LimitReachedResponse{
			Error:        "limit_reached",
			Message:      limitErr.Message,
			CurrentCount: limitErr.Current,
			Limit:        limitErr.Limit,
			Tier:         limitErr.Tier,
		})
	}

	if errors.Is(err, billing.ErrNotConfigured) {
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "billing_unavailable",
			Message: "Billing is not configured.",
		})
	}

	var de *domain.DomainError
	if !errors.As(err, &de) || de.Code == domain.ErrCodeInternal {
		return InternalError(c, err)
	}

	status, code := statusFor(de.Code)
	return c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: de.Message,
	})
}

func statusFor(code string) (int, string) {
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest, "validation_error"
	case domain.ErrCodeBadRequest:
		return http.StatusBadRequest, "bad_request"
	case domain.ErrCodeConflict:
		// Business-rule conflicts are reported as 400 to match the public API.
		return http.StatusBadRequest, "conflict"
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case domain.ErrCodeForbidden:
		return http.StatusForbidden, "forbidden"
	case domain.ErrCodeSubscriptionInactive:
		return http.StatusForbidden, "subscription_inactive"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
