package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-plan/internal/plan"
)

// ListSnapshots handles GET /v1/events/:id/snapshots.
func (h *PlanHandler) ListSnapshots(c echo.Context) error {
	snaps, err := h.Engine.ListSnapshots(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"snapshots": snaps})
}

// GetSnapshot handles GET /v1/events/:id/snapshots/:snapshot_id.
func (h *PlanHandler) GetSnapshot(c echo.Context) error {
	snap, err := h.Engine.GetSnapshot(c.Request().Context(), c.Param("id"), c.Param("snapshot_id"), caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// RestoreSnapshot handles POST /v1/events/:id/snapshots/:snapshot_id/restore
// with {version}.
func (h *PlanHandler) RestoreSnapshot(c echo.Context) error {
	var body struct {
		Version *int64 `json:"version"`
	}
	if err := c.Bind(&body); err != nil {
		return writeError(c, errBadBody)
	}
	if body.Version == nil {
		return writeError(c, plan.Errorf(plan.CodeValidation, "version is required"))
	}
	res, err := h.Engine.Restore(c.Request().Context(), c.Param("id"), c.Param("snapshot_id"), caller(c), *body.Version)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"plan_data":        res.Plan,
		"restored_from":    c.Param("snapshot_id"),
	})
}

// RequireReader rejects callers that may not read the event before the
// rest of the chain runs.  Cached snapshot reads sit behind it, so a
// released lock or a deleted event takes effect immediately.
func (h *PlanHandler) RequireReader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := h.Engine.GetPlan(c.Request().Context(), c.Param("id"), caller(c)); err != nil {
			return writeError(c, err)
		}
		return next(c)
	}
}
