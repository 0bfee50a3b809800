package middleware

import (
	"net/http"
	"strings"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTAuth checks for a valid JWT and stores the caller's identity in the
// request context.
func JWTAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(c, jwtSecret)
			if err != nil {
				return err
			}
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			c.Set("userID", claims.UserID)
			c.Set("isAdmin", claims.IsAdmin)

			return next(c)
		}
	}
}

// OptionalJWTAuth attaches the caller's identity when a token is present and
// lets anonymous requests through. A token that is present but invalid is
// still rejected, so an expired session surfaces instead of silently
// degrading to the anonymous view.
func OptionalJWTAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(c, jwtSecret)
			if err != nil {
				return err
			}
			if claims != nil {
				c.Set("userID", claims.UserID)
				c.Set("isAdmin", claims.IsAdmin)
			}

			return next(c)
		}
	}
}

// bearerClaims parses the Authorization header. It returns nil claims and a
// nil error when no header is present.
func bearerClaims(c echo.Context, jwtSecret string) (*models.JwtCustomClaims, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}

	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if err == jwt.ErrSignatureInvalid {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
		}
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	return claims, nil
}
