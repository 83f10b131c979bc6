package middleware

import "github.com/labstack/echo/v4"

// CurrentUserID returns the caller id stored by JWTAuth, or "" when the
// request is not authenticated.
func CurrentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok {
		return s
	}
	return ""
}
