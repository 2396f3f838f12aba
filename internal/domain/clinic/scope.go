package clinic

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
)

// ScopeMiddleware resolves the authenticated identity to a local user and
// stores the principal on the request context. It runs after the JWT
// middleware.
func ScopeMiddleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id, ok := auth.IdentityFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			u, err := svc.EnsureUser(ctx, id)
			if err != nil {
				return apperr.HTTP(err)
			}
			if !u.IsActive {
				return echo.NewHTTPError(http.StatusForbidden, "user is deactivated")
			}

			p := auth.Principal{UserID: u.ID, ClinicID: u.ClinicID, Role: u.Role}
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(ctx, p)))
			c.Set("user", u)
			return next(c)
		}
	}
}
