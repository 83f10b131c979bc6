package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
)

func TestDecodeOp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Op
		code Code
	}{
		{"add table", `{"op":"add_table","id":"t1","shape":"round","capacity":8}`,
			AddTable{ID: "t1", Shape: "round", Capacity: 8}, ""},
		{"assign with seat", `{"op":"assign_guest_seat","guest_id":"g1","table_id":"t1","seat_no":2}`,
			AssignGuestSeat{GuestID: "g1", TableID: "t1", SeatNo: intp(2)}, ""},
		{"swap", `{"op":"swap_seats","a":{"table_id":"t1","seat_no":1},"b":{"table_id":"t2","seat_no":2}}`,
			SwapSeats{A: model.SeatRef{TableID: "t1", SeatNo: 1}, B: model.SeatRef{TableID: "t2", SeatNo: 2}}, ""},
		{"missing op", `{"id":"t1"}`, nil, CodeValidation},
		{"unknown op", `{"op":"paint_table"}`, nil, CodeValidation},
		{"unknown field", `{"op":"remove_table","table_id":"t1","force":true}`, nil, CodeValidation},
		{"wrong type", `{"op":"add_table","id":"t1","shape":"round","capacity":"eight"}`, nil, CodeValidation},
		{"not an object", `[1,2]`, nil, CodeValidation},
		{"restore is not a batch op", `{"op":"restore_snapshot"}`, nil, CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, perr := DecodeOp(json.RawMessage(tt.raw))
			if tt.code != "" {
				requireCode(t, perr, tt.code)
				return
			}
			require.Nil(t, perr)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestDecodeOpsBounds(t *testing.T) {
	one := json.RawMessage(`{"op":"remove_guest","guest_id":"g1"}`)

	_, perr := DecodeOps(nil)
	requireCode(t, perr, CodeValidation)

	raws := make([]json.RawMessage, MaxBatchOps+1)
	for i := range raws {
		raws[i] = one
	}
	_, perr = DecodeOps(raws)
	requireCode(t, perr, CodeValidation)
	assert.Equal(t, MaxBatchOps+1, perr.Details["provided"])

	ops, perr := DecodeOps(raws[:MaxBatchOps])
	require.Nil(t, perr)
	assert.Len(t, ops, MaxBatchOps)
}

func TestDecodeOpsReportsIndex(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"op":"remove_guest","guest_id":"g1"}`),
		json.RawMessage(`{"op":"remove_guest","guest":"g2"}`),
	}
	_, perr := DecodeOps(raws)
	requireCode(t, perr, CodeValidation)
	require.NotNil(t, perr.OpIndex)
	assert.Equal(t, 1, *perr.OpIndex)
	assert.True(t, strings.HasPrefix(perr.Error(), "VALIDATION_ERROR: op 1:"))
}

func TestEncodeOpRoundTrip(t *testing.T) {
	in := MoveGuestTable{GuestID: "g1", TableID: "t2", SeatNo: intp(3)}
	raw, err := EncodeOp(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"op":"move_guest_table"`)

	out, perr := DecodeOp(raw)
	require.Nil(t, perr)
	assert.Equal(t, in, out)
}
