package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
)

func TestApplyBatchSequentialComposition(t *testing.T) {
	doc := model.NewPlanDocument()
	ops := []Op{
		AddTable{ID: "t1", Shape: "round", Capacity: 2},
		AddGuest{ID: "g1", Name: "Ada"},
		AddGuest{ID: "g2", Name: "Grace"},
		AssignGuestSeat{GuestID: "g1", TableID: "t1"},
		AssignGuestSeat{GuestID: "g2", TableID: "t1"},
	}

	next, facts, perr := ApplyBatch(doc, ops)
	require.Nil(t, perr)
	require.Len(t, facts, len(ops))
	assert.Equal(t, model.SeatRef{TableID: "t1", SeatNo: 1}, seatOf(t, next, "g1"))
	assert.Equal(t, model.SeatRef{TableID: "t1", SeatNo: 2}, seatOf(t, next, "g2"))
	for i, f := range facts {
		assert.Equal(t, ops[i].Kind(), f.Action)
	}
	assert.Empty(t, doc.Tables, "input document must not change")
}

func TestApplyBatchIsAtomic(t *testing.T) {
	doc := seatedDoc()
	ops := []Op{
		AddGuest{ID: "g4", Name: "Ken"},
		AssignGuestSeat{GuestID: "g4", TableID: "t2"},
		AddTable{ID: "t3", Shape: "oval", Capacity: 4},
		RemoveGuest{GuestID: "g1"},
	}

	got, facts, perr := ApplyBatch(doc, ops)
	requireCode(t, perr, CodeValidation)
	require.NotNil(t, perr.OpIndex)
	assert.Equal(t, 2, *perr.OpIndex)
	assert.Nil(t, facts)
	assert.Same(t, doc, got)
	assert.Equal(t, seatedDoc(), doc)
}

func TestApplyBatchLaterOpSeesEarlierState(t *testing.T) {
	// the second op fails only because the first one filled the last seat
	ops := []Op{
		AssignGuestSeat{GuestID: "g3", TableID: "t1", SeatNo: intp(2)},
		AssignGuestSeat{GuestID: "g1", TableID: "t1", SeatNo: intp(2)},
	}
	_, _, perr := ApplyBatch(seatedDoc(), ops)
	requireCode(t, perr, CodeSeatOccupied)
	assert.Equal(t, 1, *perr.OpIndex)
}

func TestApplyBatchRejectsCorruptInput(t *testing.T) {
	doc := seatedDoc()
	doc.Tables[1].SetOccupant(1, strp("g1")) // g1 already sits at t1

	_, _, perr := ApplyBatch(doc, []Op{UpdateGuest{GuestID: "g3", Note: strp("hi")}})
	requireCode(t, perr, CodeIntegrity)
	assert.Nil(t, perr.OpIndex)
}

func TestApplyBatchNeverSeatsGuestTwice(t *testing.T) {
	ops := []Op{
		MoveGuestTable{GuestID: "g1", TableID: "t2"},
		AssignGuestSeat{GuestID: "g1", TableID: "t1", SeatNo: intp(4)},
		SwapSeats{A: ref("t1", 4), B: ref("t2", 2)},
		MoveGuestTable{GuestID: "g2", TableID: "t2"},
	}
	next, _, perr := ApplyBatch(seatedDoc(), ops)
	require.Nil(t, perr)

	seen := map[string]int{}
	for _, tb := range next.Tables {
		for _, id := range tb.SeatedGuests() {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "guest %s", id)
	}
	assert.Empty(t, CheckIntegrity(next))
}
