package plan

import (
	"fmt"
	"unicode/utf8"

	"github.com/iliyamo/seating-plan/internal/model"
)

// Violation is one broken document invariant.
type Violation struct {
	Kind   string `json:"kind"` // table, guest or seat
	ID     string `json:"id"`
	SeatNo int    `json:"seat_no,omitempty"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	if v.SeatNo > 0 {
		return fmt.Sprintf("%s %s seat %d: %s", v.Kind, v.ID, v.SeatNo, v.Reason)
	}
	return fmt.Sprintf("%s %s: %s", v.Kind, v.ID, v.Reason)
}

// CheckIntegrity runs the whole-document invariant pass.  An empty result
// means the document is valid.
func CheckIntegrity(doc *model.PlanDocument) []Violation {
	var out []Violation
	guests := make(map[string]bool, len(doc.Guests))
	for _, g := range doc.Guests {
		if guests[g.ID] {
			out = append(out, Violation{Kind: "guest", ID: g.ID, Reason: "duplicate_id"})
		}
		guests[g.ID] = true
		if g.Name == "" || utf8.RuneCountInString(g.Name) > MaxGuestName {
			out = append(out, Violation{Kind: "guest", ID: g.ID, Reason: "invalid_name"})
		}
		if tooLong(g.Note, MaxGuestNote) || tooLong(g.Tag, MaxGuestTag) || tooLong(g.RSVP, MaxGuestRSVP) {
			out = append(out, Violation{Kind: "guest", ID: g.ID, Reason: "field_too_long"})
		}
	}

	tables := make(map[string]bool, len(doc.Tables))
	seatedAt := make(map[string]string)
	for _, t := range doc.Tables {
		if tables[t.ID] {
			out = append(out, Violation{Kind: "table", ID: t.ID, Reason: "duplicate_id"})
		}
		tables[t.ID] = true
		if !validShape(t.Shape) {
			out = append(out, Violation{Kind: "table", ID: t.ID, Reason: "invalid_shape"})
		}
		if t.Capacity <= 0 {
			out = append(out, Violation{Kind: "table", ID: t.ID, Reason: "invalid_capacity"})
		}
		if t.StartIndex < 1 {
			out = append(out, Violation{Kind: "table", ID: t.ID, Reason: "invalid_start_index"})
		}
		if t.HeadSeat < 1 || t.HeadSeat > t.Capacity {
			out = append(out, Violation{Kind: "table", ID: t.ID, Reason: "invalid_head_seat"})
		}
		seen := make(map[int]bool, len(t.Seats))
		for _, s := range t.Seats {
			if s.SeatNo < 1 || s.SeatNo > t.Capacity {
				out = append(out, Violation{Kind: "seat", ID: t.ID, SeatNo: s.SeatNo, Reason: "seat_out_of_range"})
			}
			if seen[s.SeatNo] {
				out = append(out, Violation{Kind: "seat", ID: t.ID, SeatNo: s.SeatNo, Reason: "duplicate_seat"})
			}
			seen[s.SeatNo] = true
			if s.GuestID == nil {
				continue
			}
			gid := *s.GuestID
			if !guests[gid] {
				out = append(out, Violation{Kind: "seat", ID: t.ID, SeatNo: s.SeatNo, Reason: "unknown_guest:" + gid})
			}
			if prev, ok := seatedAt[gid]; ok {
				out = append(out, Violation{Kind: "guest", ID: gid, Reason: "seated_twice:" + prev})
			}
			seatedAt[gid] = fmt.Sprintf("%s#%d", t.ID, s.SeatNo)
		}
	}
	return out
}

// IntegrityError wraps violations into the error returned to callers.
func IntegrityError(vs []Violation) *Error {
	return NewError(CodeIntegrity, fmt.Sprintf("plan violates %d invariant(s); first: %s", len(vs), vs[0]),
		map[string]any{"violations": vs})
}

func tooLong(s *string, limit int) bool {
	return s != nil && utf8.RuneCountInString(*s) > limit
}
