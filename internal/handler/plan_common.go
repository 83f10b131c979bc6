// Package handler defines the HTTP handlers.  Every plan mutation handler
// is a thin adapter: it decodes the request into plan operations, hands
// them to the engine and projects the result.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seating-plan/internal/engine"
	"github.com/iliyamo/seating-plan/internal/middleware"
	"github.com/iliyamo/seating-plan/internal/plan"
)

// maxBodyBytes bounds request bodies; 100 operations fit comfortably.
const maxBodyBytes = 1 << 20

// PlanHandler bundles the engine used by all plan endpoints.
type PlanHandler struct {
	Engine *engine.Engine
}

// NewPlanHandler constructs a PlanHandler and panics if eng is nil.
func NewPlanHandler(eng *engine.Engine) *PlanHandler {
	if eng == nil {
		panic("nil engine passed to NewPlanHandler")
	}
	return &PlanHandler{Engine: eng}
}

var errBadBody = errors.New("malformed request body")

// statusFor maps an error class to its HTTP status.
func statusFor(perr *plan.Error) int {
	switch perr.Class() {
	case plan.ClassAuthorization:
		return http.StatusForbidden
	case plan.ClassConflict:
		return http.StatusConflict
	case plan.ClassNotFound:
		return http.StatusNotFound
	case plan.ClassInternal:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

// writeError renders err in the {error: {code, message, details}}
// envelope.  Errors that are not plan errors are reported as INTERNAL
// without their text.
func writeError(c echo.Context, err error) error {
	if errors.Is(err, errBadBody) {
		return c.JSON(http.StatusBadRequest, envelope(plan.CodeValidation, err.Error(), nil))
	}
	perr, ok := plan.AsError(err)
	if !ok {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, envelope(plan.CodeInternal, "internal error", nil))
	}
	details := perr.Details
	if perr.OpIndex != nil {
		cp := make(map[string]any, len(details)+1)
		for k, v := range details {
			cp[k] = v
		}
		cp["op_index"] = *perr.OpIndex
		details = cp
	}
	return c.JSON(statusFor(perr), envelope(perr.Code, perr.Message, details))
}

func envelope(code plan.Code, msg string, details map[string]any) echo.Map {
	body := echo.Map{"code": code, "message": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	return echo.Map{"error": body}
}

// caller returns the authenticated user id.  JWTAuth guarantees it is set
// on every /v1 route.
func caller(c echo.Context) string { return middleware.CurrentUserID(c) }

// readObject reads the request body as a JSON object.
func readObject(c echo.Context) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		return nil, errBadBody
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, errBadBody
	}
	return obj, nil
}

// takeVersion removes and decodes the "version" member of obj.
func takeVersion(obj map[string]json.RawMessage) (int64, error) {
	raw, ok := obj["version"]
	if !ok {
		return 0, plan.Errorf(plan.CodeValidation, "version is required")
	}
	delete(obj, "version")
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil || v < 0 {
		return 0, plan.Errorf(plan.CodeValidation, "version must be a non-negative integer")
	}
	return v, nil
}

// queryVersion reads the ?version= parameter used by DELETE endpoints.
func queryVersion(c echo.Context) (int64, error) {
	s := c.QueryParam("version")
	if s == "" {
		return 0, plan.Errorf(plan.CodeValidation, "version query parameter is required")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, plan.Errorf(plan.CodeValidation, "version must be a non-negative integer")
	}
	return v, nil
}

// singleOp builds one operation of kind from the body fields plus the ids
// taken from the path, going through the same decoder as the batch
// endpoint so unknown fields and bad types are rejected identically.
func singleOp(kind plan.Kind, fields map[string]json.RawMessage, ids map[string]string) (plan.Op, error) {
	obj := make(map[string]json.RawMessage, len(fields)+len(ids)+1)
	for k, v := range fields {
		obj[k] = v
	}
	for k, v := range ids {
		b, _ := json.Marshal(v)
		obj[k] = b
	}
	obj["op"], _ = json.Marshal(string(kind))
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, errBadBody
	}
	op, perr := plan.DecodeOp(raw)
	if perr != nil {
		return nil, perr
	}
	return op, nil
}
