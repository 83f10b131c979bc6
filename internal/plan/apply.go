package plan

import (
	"sort"

	"github.com/iliyamo/seating-plan/internal/model"
)

// Fact is what an applier reports about the change it made.  The audit
// recorder turns it into an audit entry and the snapshot policy inspects
// CapacityDecreased and ClearedTables.
type Fact struct {
	Action            Kind
	Before            map[string]any
	After             map[string]any
	ClearedTables     []string
	CapacityDecreased bool
}

// Apply returns the document that results from applying a validated op to
// doc.  doc itself is left untouched.
func Apply(doc *model.PlanDocument, op Op) (*model.PlanDocument, Fact) {
	next := doc.Clone()
	var f Fact
	switch o := op.(type) {
	case AddTable:
		f = applyAddTable(next, o)
	case UpdateTable:
		f = applyUpdateTable(next, o)
	case RemoveTable:
		f = applyRemoveTable(next, o)
	case AddGuest:
		f = applyAddGuest(next, o)
	case UpdateGuest:
		f = applyUpdateGuest(next, o)
	case RemoveGuest:
		f = applyRemoveGuest(next, o)
	case AssignGuestSeat:
		f = applyAssign(next, o.GuestID, o.TableID, o.SeatNo)
	case SwapSeats:
		f = applySwap(next, o)
	case MoveGuestTable:
		f = applyAssign(next, o.GuestID, o.TableID, o.SeatNo)
	case ChangeSeatOrderSettings:
		f = applySeatOrder(next, o)
	}
	f.Action = op.Kind()
	return next, f
}

func applyAddTable(doc *model.PlanDocument, o AddTable) Fact {
	t := model.Table{
		ID:         o.ID,
		Shape:      o.Shape,
		Capacity:   o.Capacity,
		Label:      nonEmpty(o.Label),
		StartIndex: intOr(o.StartIndex, 1),
		HeadSeat:   intOr(o.HeadSeat, 1),
		Direction:  model.DirectionClockwise,
		Seats:      []model.SeatAssignment{},
	}
	doc.Tables = append(doc.Tables, t)
	return Fact{After: tableFields(t)}
}

func applyUpdateTable(doc *model.PlanDocument, o UpdateTable) Fact {
	t := &doc.Tables[doc.TableIndex(o.TableID)]
	f := Fact{Before: tableFields(*t)}
	if o.Shape != nil {
		t.Shape = *o.Shape
	}
	if o.Label != nil {
		t.Label = nonEmpty(o.Label)
	}
	if o.StartIndex != nil {
		t.StartIndex = *o.StartIndex
	}
	var moved []map[string]any
	if o.Capacity != nil && *o.Capacity != t.Capacity {
		if *o.Capacity < t.Capacity {
			f.CapacityDecreased = true
			moved = shrinkSeats(t, *o.Capacity)
		}
		t.Capacity = *o.Capacity
	}
	if o.HeadSeat != nil {
		t.HeadSeat = *o.HeadSeat
	} else if t.HeadSeat > t.Capacity {
		t.HeadSeat = 1
	}
	f.After = tableFields(*t)
	if len(moved) > 0 {
		f.After["relocated"] = moved
	}
	return f
}

// shrinkSeats drops seat entries above newCap.  Guests sitting above newCap
// are moved, in seat order, into the lowest free seats within newCap.  The
// validator guarantees enough free seats exist.
func shrinkSeats(t *model.Table, newCap int) []map[string]any {
	var displaced []model.SeatAssignment
	kept := make([]model.SeatAssignment, 0, len(t.Seats))
	for _, s := range t.Seats {
		if s.SeatNo <= newCap {
			kept = append(kept, s)
			continue
		}
		if s.GuestID != nil {
			displaced = append(displaced, s)
		}
	}
	t.Seats = kept
	sort.Slice(displaced, func(i, j int) bool { return displaced[i].SeatNo < displaced[j].SeatNo })
	var moved []map[string]any
	scratch := *t
	scratch.Capacity = newCap
	for _, s := range displaced {
		to := scratch.FirstFreeSeat()
		scratch.SetOccupant(to, s.GuestID)
		moved = append(moved, map[string]any{"guest_id": *s.GuestID, "from_seat": s.SeatNo, "to_seat": to})
	}
	t.Seats = scratch.Seats
	return moved
}

func applyRemoveTable(doc *model.PlanDocument, o RemoveTable) Fact {
	i := doc.TableIndex(o.TableID)
	before := tableFields(doc.Tables[i])
	doc.Tables = append(doc.Tables[:i], doc.Tables[i+1:]...)
	return Fact{Before: before}
}

func applyAddGuest(doc *model.PlanDocument, o AddGuest) Fact {
	g := model.Guest{ID: o.ID, Name: o.Name, Note: nonEmpty(o.Note), Tag: nonEmpty(o.Tag), RSVP: nonEmpty(o.RSVP)}
	doc.Guests = append(doc.Guests, g)
	return Fact{After: guestFields(g)}
}

func applyUpdateGuest(doc *model.PlanDocument, o UpdateGuest) Fact {
	g := &doc.Guests[doc.GuestIndex(o.GuestID)]
	before := guestFields(*g)
	if o.Name != nil {
		g.Name = *o.Name
	}
	if o.Note != nil {
		g.Note = nonEmpty(o.Note)
	}
	if o.Tag != nil {
		g.Tag = nonEmpty(o.Tag)
	}
	if o.RSVP != nil {
		g.RSVP = nonEmpty(o.RSVP)
	}
	return Fact{Before: before, After: guestFields(*g)}
}

func applyRemoveGuest(doc *model.PlanDocument, o RemoveGuest) Fact {
	i := doc.GuestIndex(o.GuestID)
	before := guestFields(doc.Guests[i])
	doc.Guests = append(doc.Guests[:i], doc.Guests[i+1:]...)
	var cleared []string
	var seats []model.SeatRef
	for ti := range doc.Tables {
		t := &doc.Tables[ti]
		touched := false
		for si := range t.Seats {
			if g := t.Seats[si].GuestID; g != nil && *g == o.GuestID {
				t.Seats[si].GuestID = nil
				seats = append(seats, model.SeatRef{TableID: t.ID, SeatNo: t.Seats[si].SeatNo})
				touched = true
			}
		}
		if touched {
			cleared = append(cleared, t.ID)
		}
	}
	if len(seats) > 0 {
		before["seats"] = seats
	}
	return Fact{Before: before, ClearedTables: cleared}
}

// applyAssign implements both assign_guest_seat and move_guest_table: the
// guest leaves any prior seat first, then takes seatNo or the first free
// seat of the target table.
func applyAssign(doc *model.PlanDocument, guestID, tableID string, seatNo *int) Fact {
	f := Fact{}
	if cur, ok := doc.FindGuestSeat(guestID); ok {
		doc.Tables[doc.TableIndex(cur.TableID)].SetOccupant(cur.SeatNo, nil)
		f.Before = map[string]any{"guest_id": guestID, "table_id": cur.TableID, "seat_no": cur.SeatNo}
	} else {
		f.Before = map[string]any{"guest_id": guestID, "table_id": nil, "seat_no": nil}
	}
	t := &doc.Tables[doc.TableIndex(tableID)]
	to := 0
	if seatNo != nil {
		to = *seatNo
	} else {
		to = t.FirstFreeSeat()
	}
	gid := guestID
	t.SetOccupant(to, &gid)
	f.After = map[string]any{"guest_id": guestID, "table_id": tableID, "seat_no": to}
	return f
}

func applySwap(doc *model.PlanDocument, o SwapSeats) Fact {
	ta := &doc.Tables[doc.TableIndex(o.A.TableID)]
	occA := ta.Occupant(o.A.SeatNo)
	tb := &doc.Tables[doc.TableIndex(o.B.TableID)]
	occB := tb.Occupant(o.B.SeatNo)
	f := Fact{
		Before: map[string]any{"a": seatFields(o.A, occA), "b": seatFields(o.B, occB)},
		After:  map[string]any{"a": seatFields(o.A, occB), "b": seatFields(o.B, occA)},
	}
	if o.A == o.B || (occA == nil && occB == nil) {
		f.After = f.Before
		return f
	}
	ta.SetOccupant(o.A.SeatNo, occB)
	tb.SetOccupant(o.B.SeatNo, occA)
	return f
}

func applySeatOrder(doc *model.PlanDocument, o ChangeSeatOrderSettings) Fact {
	t := &doc.Tables[doc.TableIndex(o.TableID)]
	before := seatOrderFields(*t)
	if o.StartIndex != nil {
		t.StartIndex = *o.StartIndex
	}
	if o.HeadSeat != nil {
		t.HeadSeat = *o.HeadSeat
	}
	if o.Direction != nil {
		t.Direction = *o.Direction
	}
	return Fact{Before: before, After: seatOrderFields(*t)}
}

func tableFields(t model.Table) map[string]any {
	m := map[string]any{
		"table_id":     t.ID,
		"shape":        t.Shape,
		"capacity":     t.Capacity,
		"start_index":  t.StartIndex,
		"head_seat":    t.HeadSeat,
		"seated_count": t.SeatedCount(),
	}
	if t.Label != nil {
		m["label"] = *t.Label
	}
	return m
}

func guestFields(g model.Guest) map[string]any {
	m := map[string]any{"guest_id": g.ID, "name": g.Name}
	if g.Note != nil {
		m["note"] = *g.Note
	}
	if g.Tag != nil {
		m["tag"] = *g.Tag
	}
	if g.RSVP != nil {
		m["rsvp"] = *g.RSVP
	}
	return m
}

func seatOrderFields(t model.Table) map[string]any {
	return map[string]any{"table_id": t.ID, "start_index": t.StartIndex, "head_seat": t.HeadSeat, "direction": t.Direction}
}

func seatFields(ref model.SeatRef, guestID *string) map[string]any {
	m := map[string]any{"table_id": ref.TableID, "seat_no": ref.SeatNo, "guest_id": nil}
	if guestID != nil {
		m["guest_id"] = *guestID
	}
	return m
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
