package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func IsAdmin(user *AppUser) bool {
	if user == nil {
		return false
	}
	return user.Role == "admin"
}

// RequireRole guards routes that mutate the graph. Admins pass any role
// check.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			if user.Role != role && !IsAdmin(user) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing role " + role})
			}

			return next(c)
		}
	}
}
