package plan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/seating-plan/internal/model"
)

// MaxBatchOps caps the number of operations a single request may carry.
const MaxBatchOps = 100

// Kind names an operation on the wire (the "op" field).
type Kind string

const (
	KindAddTable        Kind = "add_table"
	KindUpdateTable     Kind = "update_table"
	KindRemoveTable     Kind = "remove_table"
	KindAddGuest        Kind = "add_guest"
	KindUpdateGuest     Kind = "update_guest"
	KindRemoveGuest     Kind = "remove_guest"
	KindAssignGuestSeat Kind = "assign_guest_seat"
	KindSwapSeats       Kind = "swap_seats"
	KindMoveGuestTable  Kind = "move_guest_table"
	KindChangeSeatOrder Kind = "change_seat_order_settings"
	KindRestoreSnapshot Kind = "restore_snapshot"
)

// Op is one typed plan operation.
type Op interface {
	Kind() Kind
}

// AddTable creates a table.  StartIndex and HeadSeat default to 1.
type AddTable struct {
	ID         string  `json:"id"`
	Shape      string  `json:"shape"`
	Capacity   int     `json:"capacity"`
	Label      *string `json:"label,omitempty"`
	StartIndex *int    `json:"start_index,omitempty"`
	HeadSeat   *int    `json:"head_seat,omitempty"`
}

// UpdateTable patches a table.  A nil field is left unchanged; an empty
// Label clears the label.
type UpdateTable struct {
	TableID    string  `json:"table_id"`
	Shape      *string `json:"shape,omitempty"`
	Capacity   *int    `json:"capacity,omitempty"`
	Label      *string `json:"label,omitempty"`
	StartIndex *int    `json:"start_index,omitempty"`
	HeadSeat   *int    `json:"head_seat,omitempty"`
}

type RemoveTable struct {
	TableID string `json:"table_id"`
}

type AddGuest struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Note *string `json:"note,omitempty"`
	Tag  *string `json:"tag,omitempty"`
	RSVP *string `json:"rsvp,omitempty"`
}

// UpdateGuest patches a guest.  Empty Note, Tag or RSVP clear the field.
type UpdateGuest struct {
	GuestID string  `json:"guest_id"`
	Name    *string `json:"name,omitempty"`
	Note    *string `json:"note,omitempty"`
	Tag     *string `json:"tag,omitempty"`
	RSVP    *string `json:"rsvp,omitempty"`
}

type RemoveGuest struct {
	GuestID string `json:"guest_id"`
}

// AssignGuestSeat seats a guest.  Without SeatNo the first free seat in
// ascending order is used.
type AssignGuestSeat struct {
	GuestID string `json:"guest_id"`
	TableID string `json:"table_id"`
	SeatNo  *int   `json:"seat_no,omitempty"`
}

type SwapSeats struct {
	A model.SeatRef `json:"a"`
	B model.SeatRef `json:"b"`
}

type MoveGuestTable struct {
	GuestID string `json:"guest_id"`
	TableID string `json:"table_id"`
	SeatNo  *int   `json:"seat_no,omitempty"`
}

type ChangeSeatOrderSettings struct {
	TableID    string  `json:"table_id"`
	StartIndex *int    `json:"start_index,omitempty"`
	HeadSeat   *int    `json:"head_seat,omitempty"`
	Direction  *string `json:"direction,omitempty"`
}

func (AddTable) Kind() Kind                { return KindAddTable }
func (UpdateTable) Kind() Kind             { return KindUpdateTable }
func (RemoveTable) Kind() Kind             { return KindRemoveTable }
func (AddGuest) Kind() Kind                { return KindAddGuest }
func (UpdateGuest) Kind() Kind             { return KindUpdateGuest }
func (RemoveGuest) Kind() Kind             { return KindRemoveGuest }
func (AssignGuestSeat) Kind() Kind         { return KindAssignGuestSeat }
func (SwapSeats) Kind() Kind               { return KindSwapSeats }
func (MoveGuestTable) Kind() Kind          { return KindMoveGuestTable }
func (ChangeSeatOrderSettings) Kind() Kind { return KindChangeSeatOrder }

func newOp(k Kind) (Op, bool) {
	switch k {
	case KindAddTable:
		return &AddTable{}, true
	case KindUpdateTable:
		return &UpdateTable{}, true
	case KindRemoveTable:
		return &RemoveTable{}, true
	case KindAddGuest:
		return &AddGuest{}, true
	case KindUpdateGuest:
		return &UpdateGuest{}, true
	case KindRemoveGuest:
		return &RemoveGuest{}, true
	case KindAssignGuestSeat:
		return &AssignGuestSeat{}, true
	case KindSwapSeats:
		return &SwapSeats{}, true
	case KindMoveGuestTable:
		return &MoveGuestTable{}, true
	case KindChangeSeatOrder:
		return &ChangeSeatOrderSettings{}, true
	}
	return nil, false
}

// DecodeOp decodes one wire operation.  The "op" field selects the kind;
// unknown kinds and unknown fields are rejected.
func DecodeOp(raw json.RawMessage) (Op, *Error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, Errorf(CodeValidation, "operation must be a JSON object")
	}
	tagRaw, ok := fields["op"]
	if !ok {
		return nil, Errorf(CodeValidation, "missing op field")
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return nil, Errorf(CodeValidation, "op must be a string")
	}
	target, ok := newOp(Kind(tag))
	if !ok {
		return nil, NewError(CodeValidation, fmt.Sprintf("unknown op %q", tag), map[string]any{"op": tag})
	}
	delete(fields, "op")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, Errorf(CodeValidation, "malformed %s operation", tag)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, NewError(CodeValidation, fmt.Sprintf("malformed %s operation: %v", tag, err), map[string]any{"op": tag})
	}
	return deref(target), nil
}

// DecodeOps decodes a batch.  The batch must hold 1..MaxBatchOps operations.
func DecodeOps(raws []json.RawMessage) ([]Op, *Error) {
	if len(raws) == 0 {
		return nil, Errorf(CodeValidation, "ops must contain at least one operation")
	}
	if len(raws) > MaxBatchOps {
		return nil, NewError(CodeValidation, fmt.Sprintf("ops must contain at most %d operations", MaxBatchOps),
			map[string]any{"max_ops": MaxBatchOps, "provided": len(raws)})
	}
	ops := make([]Op, 0, len(raws))
	for i, raw := range raws {
		op, perr := DecodeOp(raw)
		if perr != nil {
			return nil, perr.AtOp(i)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// EncodeOp renders an operation in its wire form, "op" field included.
func EncodeOp(op Op) (json.RawMessage, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["op"] = string(op.Kind())
	return json.Marshal(fields)
}

// deref turns the pointer produced by newOp back into a value so that
// callers switch on value types only.
func deref(op Op) Op {
	switch v := op.(type) {
	case *AddTable:
		return *v
	case *UpdateTable:
		return *v
	case *RemoveTable:
		return *v
	case *AddGuest:
		return *v
	case *UpdateGuest:
		return *v
	case *RemoveGuest:
		return *v
	case *AssignGuestSeat:
		return *v
	case *SwapSeats:
		return *v
	case *MoveGuestTable:
		return *v
	case *ChangeSeatOrderSettings:
		return *v
	}
	return op
}
