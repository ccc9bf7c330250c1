package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/voiceqa/pkg/models"
)

// UserContextKey is the echo context key the authenticated user is stored
// under.
const UserContextKey = "user"

// UserResolver turns validated token claims into a live user record. The
// users service implements it; tests substitute stubs.
type UserResolver interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// RequireAuth returns middleware that authenticates every request with a
// Bearer access token and stores the resolved user in the echo context.
func RequireAuth(tokenService *TokenService, resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := tokenService.ValidateAccessToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			user, err := resolver.GetByID(c.Request().Context(), claims.UserID)
			if err != nil || !user.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user placed in the context by
// RequireAuth, or nil outside an authenticated route.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(UserContextKey).(*models.User)
	return user
}
