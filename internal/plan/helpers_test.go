package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
)

func intp(n int) *int       { return &n }
func strp(s string) *string { return &s }

// seatedDoc returns a plan with table t1 (capacity 4) seating g1 at 1 and
// g2 at 3, an empty table t2 (capacity 2) and an unseated guest g3.
func seatedDoc() *model.PlanDocument {
	doc := model.NewPlanDocument()
	doc.Tables = []model.Table{
		{ID: "t1", Shape: model.ShapeRound, Capacity: 4, StartIndex: 1, HeadSeat: 1, Direction: model.DirectionClockwise,
			Seats: []model.SeatAssignment{{SeatNo: 1, GuestID: strp("g1")}, {SeatNo: 3, GuestID: strp("g2")}}},
		{ID: "t2", Shape: model.ShapeLong, Capacity: 2, StartIndex: 1, HeadSeat: 1, Direction: model.DirectionClockwise,
			Seats: []model.SeatAssignment{}},
	}
	doc.Guests = []model.Guest{{ID: "g1", Name: "Ada"}, {ID: "g2", Name: "Grace"}, {ID: "g3", Name: "Linus"}}
	return doc
}

func requireCode(t *testing.T, perr *Error, code Code) {
	t.Helper()
	require.NotNil(t, perr, "expected %s", code)
	require.Equal(t, code, perr.Code, perr.Error())
}

func seatOf(t *testing.T, doc *model.PlanDocument, guestID string) model.SeatRef {
	t.Helper()
	ref, ok := doc.FindGuestSeat(guestID)
	require.True(t, ok, "guest %s not seated", guestID)
	return ref
}

func ref(table string, seat int) model.SeatRef {
	return model.SeatRef{TableID: table, SeatNo: seat}
}
