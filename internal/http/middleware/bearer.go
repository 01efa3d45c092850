package middleware

import (
	"net/http"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/auth"
	echo "github.com/labstack/echo/v4"
)

const callerKey = "caller"

// CallerFromCtx extracts the identity set by BearerMiddleware.
func CallerFromCtx(c echo.Context) (auth.Identity, bool) {
	id, ok := c.Get(callerKey).(auth.Identity)
	return id, ok && id.UserID != ""
}

// BearerMiddleware authenticates requests with an Authorization: Bearer token.
// Nothing downstream runs for an unauthenticated request.
func BearerMiddleware(resolver auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))

			id, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"success": false,
					"error":   apperr.PublicMessage(err),
				})
			}

			c.Set(callerKey, id)
			return next(c)
		}
	}
}
