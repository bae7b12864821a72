// Package middleware provides shared request processing for handlers:
// claim-token authentication, role and permission gates, and the Redis
// token-bucket rate limiter.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/auth"
)

// claimsKey is where the verified claims live in the Echo context.
const claimsKey = "claims"

// AccessCookieName is the cookie carrying the claim token.
const AccessCookieName = "token"

// ClaimVerifier is the slice of the token authority this package needs.
type ClaimVerifier interface {
	VerifyClaim(token string) (*auth.Claims, error)
}

// Authenticate validates the claim token from the access cookie (primary
// transport) or an Authorization bearer header, and injects the verified
// claims into the request context. A missing token is 401 "authentication
// required"; a present-but-invalid one is 401 "invalid token". The
// distinction matters downstream: gates treat absence of identity
// differently from insufficient identity.
func Authenticate(verifier ClaimVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			claims, err := verifier.VerifyClaim(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the verified claims stored by Authenticate, or nil
// on an unauthenticated request.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
