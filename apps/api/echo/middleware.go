package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/digitalmadrasa/madrasa/core"
)

// requireAdmin lets through template managers: admins holding any of roles (or any admin when none are given).
func requireAdmin(logger core.Logger, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			viewer, err := getContextViewer(ctx)
			if err != nil {
				return err
			}
			if !viewer.IsAdmin || !contextHasAnyRole(ctx, roles) {
				logger.Warn("template access denied", map[string]interface{}{
					"user_id": viewer.ID.String(),
					"path":    ctx.Path(),
				}, contextPerson(ctx))
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
