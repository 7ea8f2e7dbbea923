package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/school"
)

// adminMiddleware loads the authenticated admin into the context and rejects deactivated accounts.
func adminMiddleware(svc *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			adm, err := getContextAdmin(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context admin")
			}
			if !adm.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}
