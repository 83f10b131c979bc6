package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with logrus.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			entry := log.WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"uri":        req.RequestURI,
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			})
			if uid := CurrentUserID(c); uid != "" {
				entry = entry.WithField("user_id", uid)
			}
			switch {
			case res.Status >= 500:
				entry.Error("request")
			case res.Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
