package model

import "sort"

// Table shapes accepted by the editor.
const (
	ShapeRound       = "round"
	ShapeRectangular = "rectangular"
	ShapeLong        = "long"
)

// DirectionClockwise is the only seat numbering direction currently supported.
const DirectionClockwise = "clockwise"

// PlanDocument is the seating plan owned by one event.  It is stored as a
// single JSON document and is only ever replaced wholesale by the next
// valid version.
//
// Fields:
//  Tables   – ordered list of tables.
//  Guests   – ordered list of guests.
//  Settings – opaque editor settings, passed through untouched.
type PlanDocument struct {
	Tables   []Table        `json:"tables"`
	Guests   []Guest        `json:"guests"`
	Settings map[string]any `json:"settings"`
}

// Table is a single table of the plan.  Seats is sparse: a seat number with
// no entry is empty.  Seats are kept sorted by SeatNo.
type Table struct {
	ID         string           `json:"id"`
	Shape      string           `json:"shape"`
	Capacity   int              `json:"capacity"`
	Label      *string          `json:"label,omitempty"`
	StartIndex int              `json:"start_index"`
	HeadSeat   int              `json:"head_seat"`
	Direction  string           `json:"direction,omitempty"`
	Seats      []SeatAssignment `json:"seats"`
}

// SeatAssignment binds a seat number of a table to an optional guest.
type SeatAssignment struct {
	SeatNo  int     `json:"seat_no"`
	GuestID *string `json:"guest_id"`
}

// Guest is a person that can be seated.
type Guest struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Note *string `json:"note,omitempty"`
	Tag  *string `json:"tag,omitempty"`
	RSVP *string `json:"rsvp,omitempty"`
}

// NewPlanDocument returns the empty document every event starts with.
func NewPlanDocument() *PlanDocument {
	return &PlanDocument{Tables: []Table{}, Guests: []Guest{}, Settings: map[string]any{}}
}

// Clone returns a deep copy of the document.  Settings values are copied
// one level deep; they are opaque and never mutated by the engine.
func (d *PlanDocument) Clone() *PlanDocument {
	if d == nil {
		return NewPlanDocument()
	}
	out := &PlanDocument{
		Tables:   make([]Table, len(d.Tables)),
		Guests:   make([]Guest, len(d.Guests)),
		Settings: make(map[string]any, len(d.Settings)),
	}
	for i, t := range d.Tables {
		out.Tables[i] = t.Clone()
	}
	for i, g := range d.Guests {
		out.Guests[i] = g.Clone()
	}
	for k, v := range d.Settings {
		out.Settings[k] = v
	}
	return out
}

// Normalize replaces nil collections with empty ones so that the document
// always marshals to the same shape.
func (d *PlanDocument) Normalize() {
	if d.Tables == nil {
		d.Tables = []Table{}
	}
	if d.Guests == nil {
		d.Guests = []Guest{}
	}
	if d.Settings == nil {
		d.Settings = map[string]any{}
	}
	for i := range d.Tables {
		if d.Tables[i].Seats == nil {
			d.Tables[i].Seats = []SeatAssignment{}
		}
	}
}

// TableIndex returns the position of the table with the given id or -1.
func (d *PlanDocument) TableIndex(id string) int {
	for i := range d.Tables {
		if d.Tables[i].ID == id {
			return i
		}
	}
	return -1
}

// GuestIndex returns the position of the guest with the given id or -1.
func (d *PlanDocument) GuestIndex(id string) int {
	for i := range d.Guests {
		if d.Guests[i].ID == id {
			return i
		}
	}
	return -1
}

// SeatRef addresses a single seat of a table.
type SeatRef struct {
	TableID string `json:"table_id"`
	SeatNo  int    `json:"seat_no"`
}

// FindGuestSeat returns the seat currently holding the guest.
func (d *PlanDocument) FindGuestSeat(guestID string) (SeatRef, bool) {
	for _, t := range d.Tables {
		for _, s := range t.Seats {
			if s.GuestID != nil && *s.GuestID == guestID {
				return SeatRef{TableID: t.ID, SeatNo: s.SeatNo}, true
			}
		}
	}
	return SeatRef{}, false
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := t
	if t.Label != nil {
		l := *t.Label
		out.Label = &l
	}
	out.Seats = make([]SeatAssignment, len(t.Seats))
	for i, s := range t.Seats {
		out.Seats[i] = SeatAssignment{SeatNo: s.SeatNo, GuestID: cloneStr(s.GuestID)}
	}
	return out
}

// SeatedGuests returns the guest ids seated at the table in seat-number order.
func (t Table) SeatedGuests() []string {
	seats := make([]SeatAssignment, len(t.Seats))
	copy(seats, t.Seats)
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNo < seats[j].SeatNo })
	ids := []string{}
	for _, s := range seats {
		if s.GuestID != nil {
			ids = append(ids, *s.GuestID)
		}
	}
	return ids
}

// SeatedCount is the number of seats currently holding a guest.
func (t Table) SeatedCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.GuestID != nil {
			n++
		}
	}
	return n
}

// Occupant returns the guest seated at seatNo, if any.
func (t Table) Occupant(seatNo int) *string {
	for _, s := range t.Seats {
		if s.SeatNo == seatNo {
			return s.GuestID
		}
	}
	return nil
}

// FirstFreeSeat returns the lowest seat number in [1, capacity] holding no
// guest, or 0 when the table is full.
func (t Table) FirstFreeSeat() int {
	taken := make(map[int]bool, len(t.Seats))
	for _, s := range t.Seats {
		if s.GuestID != nil {
			taken[s.SeatNo] = true
		}
	}
	for n := 1; n <= t.Capacity; n++ {
		if !taken[n] {
			return n
		}
	}
	return 0
}

// SetOccupant stores guestID (nil clears) at seatNo, creating the seat entry
// on demand and keeping Seats sorted.
func (t *Table) SetOccupant(seatNo int, guestID *string) {
	for i := range t.Seats {
		if t.Seats[i].SeatNo == seatNo {
			t.Seats[i].GuestID = cloneStr(guestID)
			return
		}
	}
	t.Seats = append(t.Seats, SeatAssignment{SeatNo: seatNo, GuestID: cloneStr(guestID)})
	sort.Slice(t.Seats, func(i, j int) bool { return t.Seats[i].SeatNo < t.Seats[j].SeatNo })
}

// Clone returns a deep copy of the guest.
func (g Guest) Clone() Guest {
	out := g
	out.Note = cloneStr(g.Note)
	out.Tag = cloneStr(g.Tag)
	out.RSVP = cloneStr(g.RSVP)
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
