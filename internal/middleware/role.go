package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/auth"
	"github.com/smstore/backend/internal/model"
)

// RequireRole aborts the request unless the authenticated claim carries
// one of the allowed roles. No claim at all is 401; an insufficient role
// is 403 disclosing the required and actual role to aid debugging.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !allowed[claims.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":    "insufficient permissions",
					"required": roles,
					"current":  claims.Role,
				})
			}
			return next(c)
		}
	}
}

// RequirePermission aborts the request unless the claim's role grants the
// permission in the static table. The 401/403 split matches RequireRole.
func RequirePermission(perm model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !auth.Allows(claims.Role, perm) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":    "insufficient permissions",
					"required": perm,
					"role":     claims.Role,
				})
			}
			return next(c)
		}
	}
}
