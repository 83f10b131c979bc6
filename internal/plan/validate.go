package plan

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/seating-plan/internal/model"
)

// Field length limits, counted in characters.
const (
	MaxGuestName = 150
	MaxGuestNote = 500
	MaxGuestTag  = 50
	MaxGuestRSVP = 20
)

// Validate checks op against doc, the state produced by every earlier
// operation of the batch.  It never modifies doc.
func Validate(doc *model.PlanDocument, op Op) *Error {
	switch o := op.(type) {
	case AddTable:
		return validateAddTable(doc, o)
	case UpdateTable:
		return validateUpdateTable(doc, o)
	case RemoveTable:
		return validateRemoveTable(doc, o)
	case AddGuest:
		return validateAddGuest(doc, o)
	case UpdateGuest:
		return validateUpdateGuest(doc, o)
	case RemoveGuest:
		return validateRemoveGuest(doc, o)
	case AssignGuestSeat:
		return validateAssign(doc, o.GuestID, o.TableID, o.SeatNo)
	case SwapSeats:
		return validateSwap(doc, o)
	case MoveGuestTable:
		return validateMove(doc, o)
	case ChangeSeatOrderSettings:
		return validateSeatOrder(doc, o)
	}
	return Errorf(CodeValidation, "unsupported operation %T", op)
}

func validateAddTable(doc *model.PlanDocument, o AddTable) *Error {
	if strings.TrimSpace(o.ID) == "" {
		return Errorf(CodeValidation, "table id is required")
	}
	if doc.TableIndex(o.ID) >= 0 {
		return NewError(CodeDuplicateID, fmt.Sprintf("table %q already exists", o.ID), map[string]any{"table_id": o.ID})
	}
	if !validShape(o.Shape) {
		return invalidField("shape", o.Shape)
	}
	if o.Capacity <= 0 {
		return invalidField("capacity", o.Capacity)
	}
	if o.StartIndex != nil && *o.StartIndex < 1 {
		return invalidField("start_index", *o.StartIndex)
	}
	if o.HeadSeat != nil && (*o.HeadSeat < 1 || *o.HeadSeat > o.Capacity) {
		return invalidField("head_seat", *o.HeadSeat)
	}
	return nil
}

func validateUpdateTable(doc *model.PlanDocument, o UpdateTable) *Error {
	i := doc.TableIndex(o.TableID)
	if i < 0 {
		return tableNotFound(o.TableID)
	}
	t := doc.Tables[i]
	if o.Shape != nil && !validShape(*o.Shape) {
		return invalidField("shape", *o.Shape)
	}
	newCap := t.Capacity
	if o.Capacity != nil {
		if *o.Capacity <= 0 {
			return invalidField("capacity", *o.Capacity)
		}
		newCap = *o.Capacity
		if seated := t.SeatedCount(); newCap < t.Capacity && newCap < seated {
			return NewError(CodeCapacityExceeded,
				fmt.Sprintf("table %q seats %d guests, capacity %d is too small", t.ID, seated, newCap),
				map[string]any{
					"table_id":     t.ID,
					"capacity":     newCap,
					"seated_count": seated,
					"guest_ids":    t.SeatedGuests(),
				})
		}
	}
	if o.StartIndex != nil && *o.StartIndex < 1 {
		return invalidField("start_index", *o.StartIndex)
	}
	if o.HeadSeat != nil && (*o.HeadSeat < 1 || *o.HeadSeat > newCap) {
		return invalidField("head_seat", *o.HeadSeat)
	}
	return nil
}

func validateRemoveTable(doc *model.PlanDocument, o RemoveTable) *Error {
	i := doc.TableIndex(o.TableID)
	if i < 0 {
		return tableNotFound(o.TableID)
	}
	if n := doc.Tables[i].SeatedCount(); n > 0 {
		return NewError(CodeTableHasGuests,
			fmt.Sprintf("table %q still seats %d guests", o.TableID, n),
			map[string]any{"table_id": o.TableID, "seated_count": n})
	}
	return nil
}

func validateAddGuest(doc *model.PlanDocument, o AddGuest) *Error {
	if strings.TrimSpace(o.ID) == "" {
		return Errorf(CodeValidation, "guest id is required")
	}
	if doc.GuestIndex(o.ID) >= 0 {
		return NewError(CodeDuplicateID, fmt.Sprintf("guest %q already exists", o.ID), map[string]any{"guest_id": o.ID})
	}
	return validateGuestFields(o.Name, o.Note, o.Tag, o.RSVP)
}

func validateUpdateGuest(doc *model.PlanDocument, o UpdateGuest) *Error {
	i := doc.GuestIndex(o.GuestID)
	if i < 0 {
		return guestNotFound(o.GuestID)
	}
	g := doc.Guests[i]
	name := g.Name
	if o.Name != nil {
		name = *o.Name
	}
	return validateGuestFields(name, o.Note, o.Tag, o.RSVP)
}

func validateGuestFields(name string, note, tag, rsvp *string) *Error {
	if name == "" || utf8.RuneCountInString(name) > MaxGuestName {
		return NewError(CodeValidation, fmt.Sprintf("name must be 1..%d characters", MaxGuestName), map[string]any{"field": "name"})
	}
	for _, f := range []struct {
		field string
		value *string
		max   int
	}{{"note", note, MaxGuestNote}, {"tag", tag, MaxGuestTag}, {"rsvp", rsvp, MaxGuestRSVP}} {
		if f.value != nil && utf8.RuneCountInString(*f.value) > f.max {
			return NewError(CodeValidation, fmt.Sprintf("%s must be at most %d characters", f.field, f.max), map[string]any{"field": f.field})
		}
	}
	return nil
}

func validateRemoveGuest(doc *model.PlanDocument, o RemoveGuest) *Error {
	if doc.GuestIndex(o.GuestID) < 0 {
		return guestNotFound(o.GuestID)
	}
	return nil
}

// validateAssign is shared by assign_guest_seat and the assign half of
// move_guest_table.  The guest's current seat does not count as occupied
// because assignment moves the guest.
func validateAssign(doc *model.PlanDocument, guestID, tableID string, seatNo *int) *Error {
	if doc.GuestIndex(guestID) < 0 {
		return guestNotFound(guestID)
	}
	ti := doc.TableIndex(tableID)
	if ti < 0 {
		return tableNotFound(tableID)
	}
	t := doc.Tables[ti]
	if seatNo != nil {
		if *seatNo < 1 || *seatNo > t.Capacity {
			return NewError(CodeValidation,
				fmt.Sprintf("seat %d is outside table %q (capacity %d)", *seatNo, tableID, t.Capacity),
				map[string]any{"table_id": tableID, "seat_no": *seatNo, "capacity": t.Capacity})
		}
		if occ := t.Occupant(*seatNo); occ != nil && *occ != guestID {
			return NewError(CodeSeatOccupied,
				fmt.Sprintf("seat %d of table %q is occupied", *seatNo, tableID),
				map[string]any{"table_id": tableID, "seat_no": *seatNo, "guest_id": *occ})
		}
		return nil
	}
	// the guest's own seat frees up before the free-seat search
	scratch := t.Clone()
	if cur, ok := doc.FindGuestSeat(guestID); ok && cur.TableID == tableID {
		scratch.SetOccupant(cur.SeatNo, nil)
	}
	if scratch.FirstFreeSeat() == 0 {
		return NewError(CodeCapacityExceeded,
			fmt.Sprintf("table %q has no free seat", tableID),
			map[string]any{"table_id": tableID, "capacity": t.Capacity, "guest_ids": t.SeatedGuests()})
	}
	return nil
}

func validateSwap(doc *model.PlanDocument, o SwapSeats) *Error {
	for _, ref := range []model.SeatRef{o.A, o.B} {
		ti := doc.TableIndex(ref.TableID)
		if ti < 0 {
			return tableNotFound(ref.TableID)
		}
		if c := doc.Tables[ti].Capacity; ref.SeatNo < 1 || ref.SeatNo > c {
			return NewError(CodeInvalidSeat,
				fmt.Sprintf("seat %d is outside table %q (capacity %d)", ref.SeatNo, ref.TableID, c),
				map[string]any{"table_id": ref.TableID, "seat_no": ref.SeatNo, "capacity": c})
		}
	}
	return nil
}

func validateMove(doc *model.PlanDocument, o MoveGuestTable) *Error {
	if doc.GuestIndex(o.GuestID) < 0 {
		return guestNotFound(o.GuestID)
	}
	cur, ok := doc.FindGuestSeat(o.GuestID)
	if !ok {
		return NewError(CodeGuestNotSeated, fmt.Sprintf("guest %q is not seated", o.GuestID), map[string]any{"guest_id": o.GuestID})
	}
	scratch := doc.Clone()
	scratch.Tables[scratch.TableIndex(cur.TableID)].SetOccupant(cur.SeatNo, nil)
	return validateAssign(scratch, o.GuestID, o.TableID, o.SeatNo)
}

func validateSeatOrder(doc *model.PlanDocument, o ChangeSeatOrderSettings) *Error {
	i := doc.TableIndex(o.TableID)
	if i < 0 {
		return tableNotFound(o.TableID)
	}
	t := doc.Tables[i]
	if o.StartIndex != nil && *o.StartIndex < 1 {
		return invalidField("start_index", *o.StartIndex)
	}
	if o.HeadSeat != nil && (*o.HeadSeat < 1 || *o.HeadSeat > t.Capacity) {
		return invalidField("head_seat", *o.HeadSeat)
	}
	if o.Direction != nil && *o.Direction != model.DirectionClockwise {
		return invalidField("direction", *o.Direction)
	}
	return nil
}

func validShape(s string) bool {
	switch s {
	case model.ShapeRound, model.ShapeRectangular, model.ShapeLong:
		return true
	}
	return false
}

func invalidField(field string, value any) *Error {
	return NewError(CodeValidation, fmt.Sprintf("invalid %s: %v", field, value), map[string]any{"field": field, "value": value})
}

func tableNotFound(id string) *Error {
	return NewError(CodeTableNotFound, fmt.Sprintf("table %q not found", id), map[string]any{"table_id": id})
}

func guestNotFound(id string) *Error {
	return NewError(CodeGuestNotFound, fmt.Sprintf("guest %q not found", id), map[string]any{"guest_id": id})
}
