package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-plan/internal/engine"
	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
)

// GetPlan handles GET /v1/events/:id/plan.
func (h *PlanHandler) GetPlan(c echo.Context) error {
	ev, err := h.Engine.GetPlan(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id":         ev.ID,
		"autosave_version": ev.AutosaveVersion,
		"plan_data":        ev.Plan,
		"lock_holder":      ev.LockHolder,
		"lock_expires_at":  ev.LockExpiresAt,
	})
}

// Batch handles POST /v1/events/:id/plan/batch with {version, ops}.
func (h *PlanHandler) Batch(c echo.Context) error {
	obj, err := readObject(c)
	if err != nil {
		return writeError(c, err)
	}
	version, err := takeVersion(obj)
	if err != nil {
		return writeError(c, err)
	}
	var raws []json.RawMessage
	if raw, ok := obj["ops"]; ok {
		if err := json.Unmarshal(raw, &raws); err != nil {
			return writeError(c, plan.Errorf(plan.CodeValidation, "ops must be an array"))
		}
	}
	ops, perr := plan.DecodeOps(raws)
	if perr != nil {
		return writeError(c, perr)
	}
	res, err := h.Engine.Execute(c.Request().Context(), engine.BatchRequest{
		EventID: c.Param("id"),
		UserID:  caller(c),
		Version: version,
		Ops:     ops,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"plan_data":        res.Plan,
		"applied_ops":      res.AppliedOps,
	})
}

// Swap handles POST /v1/events/:id/plan/swap with {version, from, to}.
func (h *PlanHandler) Swap(c echo.Context) error {
	var body struct {
		Version *int64         `json:"version"`
		From    *model.SeatRef `json:"from"`
		To      *model.SeatRef `json:"to"`
	}
	if err := c.Bind(&body); err != nil {
		return writeError(c, errBadBody)
	}
	if body.Version == nil {
		return writeError(c, plan.Errorf(plan.CodeValidation, "version is required"))
	}
	if body.From == nil || body.To == nil {
		return writeError(c, plan.Errorf(plan.CodeValidation, "from and to are required"))
	}
	op := plan.SwapSeats{A: *body.From, B: *body.To}
	res, err := h.Engine.Single(c.Request().Context(), c.Param("id"), caller(c), *body.Version, op)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"from":             seatView(res.Plan, op.A),
		"to":               seatView(res.Plan, op.B),
	})
}

// PatchTable handles PATCH /v1/events/:id/plan/tables/:table_id.
func (h *PlanHandler) PatchTable(c echo.Context) error {
	res, err := h.fieldOp(c, plan.KindUpdateTable, map[string]string{"table_id": c.Param("table_id")})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"table":            tableView(res.Plan, c.Param("table_id")),
	})
}

// SeatOrder handles PUT /v1/events/:id/plan/tables/:table_id/seat-order.
func (h *PlanHandler) SeatOrder(c echo.Context) error {
	res, err := h.fieldOp(c, plan.KindChangeSeatOrder, map[string]string{"table_id": c.Param("table_id")})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"table":            tableView(res.Plan, c.Param("table_id")),
	})
}

// DeleteTable handles DELETE /v1/events/:id/plan/tables/:table_id?version=.
func (h *PlanHandler) DeleteTable(c echo.Context) error {
	version, err := queryVersion(c)
	if err != nil {
		return writeError(c, err)
	}
	op := plan.RemoveTable{TableID: c.Param("table_id")}
	res, err := h.Engine.Single(c.Request().Context(), c.Param("id"), caller(c), version, op)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"autosave_version": res.AutosaveVersion})
}

// PatchGuest handles PATCH /v1/events/:id/plan/guests/:guest_id.
func (h *PlanHandler) PatchGuest(c echo.Context) error {
	res, err := h.fieldOp(c, plan.KindUpdateGuest, map[string]string{"guest_id": c.Param("guest_id")})
	if err != nil {
		return writeError(c, err)
	}
	var guest any
	if i := res.Plan.GuestIndex(c.Param("guest_id")); i >= 0 {
		guest = res.Plan.Guests[i]
	}
	return c.JSON(http.StatusOK, echo.Map{
		"autosave_version": res.AutosaveVersion,
		"guest":            guest,
	})
}

// DeleteGuest handles DELETE /v1/events/:id/plan/guests/:guest_id?version=.
// Seats held by the guest are cleared.
func (h *PlanHandler) DeleteGuest(c echo.Context) error {
	version, err := queryVersion(c)
	if err != nil {
		return writeError(c, err)
	}
	op := plan.RemoveGuest{GuestID: c.Param("guest_id")}
	res, err := h.Engine.Single(c.Request().Context(), c.Param("id"), caller(c), version, op)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"autosave_version": res.AutosaveVersion})
}

// fieldOp runs a one-operation batch whose fields come from the request
// body ({version, ...fields}) and whose ids come from the path.
func (h *PlanHandler) fieldOp(c echo.Context, kind plan.Kind, ids map[string]string) (*engine.Result, error) {
	obj, err := readObject(c)
	if err != nil {
		return nil, err
	}
	version, err := takeVersion(obj)
	if err != nil {
		return nil, err
	}
	op, err := singleOp(kind, obj, ids)
	if err != nil {
		return nil, err
	}
	return h.Engine.Single(c.Request().Context(), c.Param("id"), caller(c), version, op)
}

func tableView(doc *model.PlanDocument, id string) any {
	if i := doc.TableIndex(id); i >= 0 {
		return doc.Tables[i]
	}
	return nil
}

func seatView(doc *model.PlanDocument, ref model.SeatRef) echo.Map {
	out := echo.Map{"table_id": ref.TableID, "seat_no": ref.SeatNo, "guest_id": nil}
	if i := doc.TableIndex(ref.TableID); i >= 0 {
		if g := doc.Tables[i].Occupant(ref.SeatNo); g != nil {
			out["guest_id"] = *g
		}
	}
	return out
}
