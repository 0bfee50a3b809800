package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FirebaseAuth verifies a Firebase ID token and resolves it to a local
// account. Clients that hold a Firebase session can call the API directly
// with it instead of exchanging it for a local JWT first.
func FirebaseAuth(authClient *auth.Client, users repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase authentication is not configured")
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			token, err := authClient.VerifyIDToken(c.Request().Context(), parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			user, err := users.GetUserByFirebaseUID(c.Request().Context(), token.UID)
			if err != nil {
				// A verified Firebase session without a local account has
				// not completed login yet.
				return echo.NewHTTPError(http.StatusUnauthorized, "Account not registered")
			}

			c.Set("userID", user.ID)
			c.Set("isAdmin", user.IsAdmin)

			return next(c)
		}
	}
}
