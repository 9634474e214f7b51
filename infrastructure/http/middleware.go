package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"studyrooms/auth"
)

const claimsKey = "identity"

// authMiddleware validates the Bearer token and injects the caller's
// identity into the request context for downstream handlers.
func authMiddleware(tokens *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization token is missing")
			}

			// Expecting the standard "Bearer <token>" format
			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func identity(c echo.Context) *auth.CustomClaims {
	claims, _ := c.Get(claimsKey).(*auth.CustomClaims)
	return claims
}
