package httpauth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/authcore"
)

// resultContextKey stores the authentication result in the echo context.
const resultContextKey = "authcore.result"

// Middleware authenticates every request through the given mechanism and
// rejects requests the mechanism does not validate.
func Middleware(mechanism Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := mechanism.ValidateAccessToken(c.Response(), c.Request())
			if !result.Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			c.Set(resultContextKey, result)
			return next(c)
		}
	}
}

// ResultFromContext returns the authentication result stored by the
// middleware. The zero result is returned outside the middleware.
func ResultFromContext(c echo.Context) authcore.Result {
	if result, ok := c.Get(resultContextKey).(authcore.Result); ok {
		return result
	}
	return authcore.NotValidated
}

// RequireRole guards a route group with a role check on top of the
// authentication middleware.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ResultFromContext(c).HasRole(role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient privileges")
			}
			return next(c)
		}
	}
}
