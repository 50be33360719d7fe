package middleware

import (
	"net/http"
	"strings"

	"github.com/jordanlanch/assetdesk/pkg/auth"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/labstack/echo/v4"
)

// JWTMiddleware authenticates the request from the Authorization header.
// A missing token is rejected with 401 and an invalid or expired one with 403.
// On success the caller's id, email, role and organization id are set in the context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get("Authorization"))
			if token == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "missing_token",
					Message: "Access denied. No token provided.",
				})
			}

			claims, err := auth.ValidateJWT(token, secret)
			if err != nil {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired token.",
				})
			}

			c.Set("user_id", claims.UserID)
			c.Set("user_email", claims.Email)
			c.Set("user_role", claims.Role)
			if claims.OrganizationID != nil {
				c.Set("organization_id", *claims.OrganizationID)
			}

			return next(c)
		}
	}
}

// bearerToken extracts the token from "Bearer <token>"
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
