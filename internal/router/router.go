// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-plan/internal/handler"
	"github.com/iliyamo/seating-plan/internal/middleware"
)

// Deps carries what route registration needs.  The middleware fields may
// be nil, in which case the corresponding feature is skipped.
type Deps struct {
	Plans     *handler.PlanHandler
	JWTSecret string
	RateLimit echo.MiddlewareFunc // applied to mutating plan routes
	Cache     echo.MiddlewareFunc // applied to snapshot reads
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics echo.HandlerFunc) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", metrics)
	}
}

// RegisterPlan registers the authenticated /v1 plan API.
func RegisterPlan(e *echo.Echo, d Deps) {
	v1 := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	v1.POST("/events", d.Plans.CreateEvent)

	ev := v1.Group("/events/:id")
	ev.GET("/plan", d.Plans.GetPlan)

	var limit []echo.MiddlewareFunc
	if d.RateLimit != nil {
		limit = append(limit, d.RateLimit)
	}
	ev.POST("/plan/batch", d.Plans.Batch, limit...)
	ev.POST("/plan/swap", d.Plans.Swap, limit...)
	ev.PATCH("/plan/tables/:table_id", d.Plans.PatchTable, limit...)
	ev.DELETE("/plan/tables/:table_id", d.Plans.DeleteTable, limit...)
	ev.PUT("/plan/tables/:table_id/seat-order", d.Plans.SeatOrder, limit...)
	ev.PATCH("/plan/guests/:guest_id", d.Plans.PatchGuest, limit...)
	ev.DELETE("/plan/guests/:guest_id", d.Plans.DeleteGuest, limit...)
	ev.POST("/lock", d.Plans.AcquireLock, limit...)
	ev.DELETE("/lock", d.Plans.ReleaseLock, limit...)
	ev.POST("/snapshots/:snapshot_id/restore", d.Plans.RestoreSnapshot, limit...)

	// authorization runs ahead of the cache on every read
	cache := []echo.MiddlewareFunc{d.Plans.RequireReader}
	if d.Cache != nil {
		cache = append(cache, d.Cache)
	}
	ev.GET("/snapshots", d.Plans.ListSnapshots)
	ev.GET("/snapshots/:snapshot_id", d.Plans.GetSnapshot, cache...)
}
