package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// requestUserID renders the "sub" claim JWTAuth stashed under "user_id" as
// a string. jwt.MapClaims decodes numeric JSON values as float64, so a
// uint64 subject comes back that way; this normalizes it to the string
// shape the reservation engine keys its records by.
func requestUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		return v
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
