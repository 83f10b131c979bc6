// Package middleware provides shared request processing for handlers:
// bearer authentication, rate limiting, snapshot response caching and
// request logging.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores its subject under "user_id" in the request context.  Only
// HS256-family tokens signed with secret are accepted.  Session
// revocation and other checks beyond signature and expiry belong to the
// identity provider, not to this service.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "invalid claims")
			}
			sub := subject(claims)
			if sub == "" {
				return unauthorized(c, "token has no subject")
			}
			c.Set("user_id", sub)
			return next(c)
		}
	}
}

// subject returns the sub claim as a string.  Numeric subjects issued by
// older token services are formatted without a fraction.
func subject(claims jwt.MapClaims) string {
	switch v := claims["sub"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": echo.Map{"code": "UNAUTHENTICATED", "message": msg},
	})
}
