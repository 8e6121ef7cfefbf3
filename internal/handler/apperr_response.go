package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// respondErr maps any error through apperr.As, writing the tagged kind's
// HTTP status and body when err is a domain error, or a generic 500
// otherwise. This is the single switch the error handling design calls
// for, replacing per-handler echo.JSON(http.StatusXXX, ...) calls for every
// domain failure.
func respondErr(c echo.Context, err error) error {
	if appErr, ok := apperr.As(err); ok {
		return c.JSON(appErr.Kind.HTTPStatus(), appErr.Body())
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
