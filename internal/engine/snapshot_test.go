package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/plan"
)

func TestShouldSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		ops     []plan.Op
		facts   []plan.Fact
		reasons []string
	}{
		{"guest edit", []plan.Op{plan.UpdateGuest{GuestID: "g1"}}, []plan.Fact{{}}, nil},
		{"remove table", []plan.Op{plan.RemoveTable{TableID: "t1"}}, []plan.Fact{{}}, []string{ReasonRemoveTable}},
		{"capacity decrease", []plan.Op{plan.UpdateTable{TableID: "t1"}}, []plan.Fact{{CapacityDecreased: true}}, []string{ReasonCapacityDecrease}},
		{"one table cleared", []plan.Op{plan.RemoveGuest{GuestID: "g1"}}, []plan.Fact{{ClearedTables: []string{"t1"}}}, nil},
		{"two tables cleared", []plan.Op{plan.RemoveGuest{GuestID: "g1"}}, []plan.Fact{{ClearedTables: []string{"t1", "t2"}}}, []string{ReasonMultiTableClear}},
		{"mixed and repeated",
			[]plan.Op{plan.RemoveTable{TableID: "t1"}, plan.UpdateTable{TableID: "t2"}, plan.RemoveTable{TableID: "t3"}},
			[]plan.Fact{{}, {CapacityDecreased: true}, {}},
			[]string{ReasonCapacityDecrease, ReasonRemoveTable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reasons := ShouldSnapshot(tt.ops, tt.facts)
			assert.Equal(t, tt.reasons != nil, ok)
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

func TestSnapshotChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.eng.Single(ctx, eventID, owner, 5, plan.UpdateGuest{GuestID: "g1", Tag: strp("vip")})
	require.NoError(t, err)
	assert.Nil(t, res.Snapshot)
	assert.Nil(t, f.stored(t).LatestSnapshotID)

	res, err = f.eng.Single(ctx, eventID, owner, 6, plan.RemoveTable{TableID: "t2"})
	require.NoError(t, err)
	first := res.Snapshot
	require.NotNil(t, first)
	assert.Equal(t, int64(6), first.Version, "snapshot captures the pre-mutation version")
	assert.Nil(t, first.PrevID)
	assert.Equal(t, []string{ReasonRemoveTable}, first.Reasons)
	assert.Equal(t, 2, len(first.Plan.Tables), "snapshot captures the pre-mutation document")
	assert.Equal(t, first.ID, *f.stored(t).LatestSnapshotID)

	res, err = f.eng.Single(ctx, eventID, owner, 7, plan.UpdateTable{TableID: "t1", Capacity: intp(2)})
	require.NoError(t, err)
	second := res.Snapshot
	require.NotNil(t, second)
	require.NotNil(t, second.PrevID)
	assert.Equal(t, first.ID, *second.PrevID)
	assert.Equal(t, []string{ReasonCapacityDecrease}, second.Reasons)

	list, err := f.eng.ListSnapshots(ctx, eventID, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Nil(t, list[0].Plan)

	got, err := f.eng.GetSnapshot(ctx, eventID, first.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, seededPlan().Tables[1], got.Plan.Tables[1])

	_, err = f.eng.GetSnapshot(ctx, eventID, "missing", owner)
	requirePlanError(t, err, plan.CodeNotFound)
	_, err = f.eng.ListSnapshots(ctx, eventID, "mallory")
	requirePlanError(t, err, plan.CodeForbidden)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.eng.Single(ctx, eventID, owner, 5, plan.RemoveTable{TableID: "t2"})
	require.NoError(t, err)
	snap := res.Snapshot
	require.NotNil(t, snap)
	f.eng.Wait()

	res, err = f.eng.Restore(ctx, eventID, snap.ID, owner, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.AutosaveVersion)
	assert.Equal(t, seededPlan(), res.Plan)
	assert.Equal(t, seededPlan(), f.stored(t).Plan)

	require.NotNil(t, res.Snapshot, "restore snapshots the document it replaces")
	assert.Equal(t, []string{ReasonRestore}, res.Snapshot.Reasons)
	assert.Equal(t, snap.ID, *res.Snapshot.PrevID)
	assert.Len(t, res.Snapshot.Plan.Tables, 1)

	require.Len(t, res.Facts, 1)
	assert.Equal(t, plan.KindRestoreSnapshot, res.Facts[0].Action)
	assert.Equal(t, snap.ID, res.Facts[0].After["snapshot_id"])

	f.eng.Wait()
	entries := f.sink.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "restore_snapshot", entries[1].ActionType)
	assert.Equal(t, int64(7), entries[1].Details["version"])
}

func TestRestoreFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Restore(ctx, eventID, "missing", owner, 5)
	requirePlanError(t, err, plan.CodeNotFound)

	_, err = f.eng.Restore(ctx, eventID, "missing", owner, 4)
	requirePlanError(t, err, plan.CodeVersionConflict)

	_, err = f.eng.Restore(ctx, eventID, "missing", "mallory", 5)
	requirePlanError(t, err, plan.CodeForbidden)

	assert.Equal(t, int64(5), f.stored(t).AutosaveVersion)
}
