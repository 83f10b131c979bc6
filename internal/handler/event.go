package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-plan/internal/plan"
)

// CreateEvent handles POST /v1/events.  The caller becomes the owner; the
// id is generated unless the body supplies one.
func (h *PlanHandler) CreateEvent(c echo.Context) error {
	var body struct {
		ID string `json:"id"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return writeError(c, errBadBody)
		}
	}
	id := strings.TrimSpace(body.ID)
	if len(id) > 64 {
		return writeError(c, plan.Errorf(plan.CodeValidation, "id must be at most 64 characters"))
	}
	ev, err := h.Engine.CreateEvent(c.Request().Context(), id, caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"event_id":         ev.ID,
		"owner_id":         ev.OwnerID,
		"autosave_version": ev.AutosaveVersion,
		"plan_data":        ev.Plan,
	})
}

// AcquireLock handles POST /v1/events/:id/lock.  Calling it again while
// holding the lock renews it.
func (h *PlanHandler) AcquireLock(c echo.Context) error {
	st, err := h.Engine.AcquireLock(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// ReleaseLock handles DELETE /v1/events/:id/lock.
func (h *PlanHandler) ReleaseLock(c echo.Context) error {
	st, err := h.Engine.ReleaseLock(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
