package server

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"decklens/internal/core"
)

// TokenVerifier checks a caller's bearer token. The hosted backend client
// implements this; tests substitute fakes.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// AuthMiddleware creates an Echo middleware that verifies the caller's
// bearer token on every request. Verification results are never cached.
func AuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return handleError(c, core.NewAuthenticationError("missing authorization header"))
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				return handleError(c, core.NewAuthenticationError("invalid authorization header format, expected 'Bearer <token>'"))
			}

			token := strings.TrimPrefix(authHeader, prefix)
			if err := verifier.VerifyToken(c.Request().Context(), token); err != nil {
				return handleError(c, err)
			}

			return next(c)
		}
	}
}
