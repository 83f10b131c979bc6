package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/repository"
)

func TestExecuteIncrementsVersionOncePerRequest(t *testing.T) {
	for _, n := range []int{1, 37, plan.MaxBatchOps} {
		t.Run(fmt.Sprintf("%d ops", n), func(t *testing.T) {
			f := newFixture(t)
			ops := make([]plan.Op, n)
			for i := range ops {
				ops[i] = plan.UpdateGuest{GuestID: "g1", Note: strp(fmt.Sprintf("note %d", i))}
			}

			res, err := f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5, Ops: ops})
			require.NoError(t, err)
			assert.Equal(t, int64(6), res.AutosaveVersion)
			assert.Equal(t, n, res.AppliedOps)
			assert.Equal(t, int64(6), f.stored(t).AutosaveVersion)
			assert.Equal(t, fmt.Sprintf("note %d", n-1), *f.stored(t).Plan.Guests[0].Note)

			f.eng.Wait()
			entries := f.sink.entries()
			require.Len(t, entries, n)
			for i, e := range entries {
				assert.Equal(t, i, e.Details["op_index"])
				assert.Equal(t, int64(6), e.Details["version"])
				assert.Equal(t, "update_guest", e.ActionType)
				assert.Equal(t, owner, e.UserID)
			}
		})
	}
}

func TestExecuteBatchLimits(t *testing.T) {
	f := newFixture(t)
	op := plan.UpdateGuest{GuestID: "g1", Note: strp("x")}

	_, err := f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5})
	requirePlanError(t, err, plan.CodeValidation)

	ops := make([]plan.Op, plan.MaxBatchOps+1)
	for i := range ops {
		ops[i] = op
	}
	_, err = f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5, Ops: ops})
	perr := requirePlanError(t, err, plan.CodeValidation)
	assert.Equal(t, plan.MaxBatchOps, perr.Details["max_ops"])

	f.eng.Config.MaxOps = 2
	_, err = f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5, Ops: ops[:3]})
	requirePlanError(t, err, plan.CodeValidation)
	assert.Equal(t, int64(5), f.stored(t).AutosaveVersion)
}

func TestExecuteVersionConflict(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Single(context.Background(), eventID, owner, 3, plan.RemoveTable{TableID: "t2"})
	perr := requirePlanError(t, err, plan.CodeVersionConflict)
	assert.Equal(t, int64(5), perr.Details["current"])
	assert.Equal(t, int64(3), perr.Details["provided"])
	assert.Equal(t, seededPlan(), f.stored(t).Plan)
}

// racingStore loses every compare-and-swap to a concurrent writer.
type racingStore struct {
	*repository.MemoryPlanRepo
}

func (s racingStore) CommitPlan(ctx context.Context, c repository.Commit) error {
	ev, _ := s.GetEvent(ctx, c.EventID)
	ev.AutosaveVersion += 4
	s.Put(ev)
	return repository.ErrVersionConflict
}

func TestExecuteLosesCompareAndSwap(t *testing.T) {
	f := newFixture(t)
	f.eng.Store = racingStore{f.store}

	_, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.UpdateGuest{GuestID: "g1", Name: strp("Ada")})
	perr := requirePlanError(t, err, plan.CodeVersionConflict)
	assert.Equal(t, int64(9), perr.Details["current"])
	assert.Equal(t, int64(5), perr.Details["provided"])
	f.eng.Wait()
	assert.Empty(t, f.sink.entries())
}

func TestExecuteIsAtomic(t *testing.T) {
	f := newFixture(t)
	ops := []plan.Op{
		plan.AddGuest{ID: "g4", Name: "Ken"},
		plan.AssignGuestSeat{GuestID: "g4", TableID: "t1", SeatNo: intp(3)},
		plan.RemoveTable{TableID: "t2"},
	}
	_, err := f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5, Ops: ops})
	perr := requirePlanError(t, err, plan.CodeSeatOccupied)
	require.NotNil(t, perr.OpIndex)
	assert.Equal(t, 1, *perr.OpIndex)

	ev := f.stored(t)
	assert.Equal(t, int64(5), ev.AutosaveVersion)
	assert.Equal(t, seededPlan(), ev.Plan)
	assert.Nil(t, ev.LatestSnapshotID)
	f.eng.Wait()
	assert.Empty(t, f.sink.entries())
}

func TestExecuteNoOpSwapStillCommits(t *testing.T) {
	f := newFixture(t)
	same := model.SeatRef{TableID: "t1", SeatNo: 1}
	res, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.SwapSeats{A: same, B: same})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.AutosaveVersion)
	assert.Equal(t, seededPlan(), res.Plan)
}

func TestExecutePreconditions(t *testing.T) {
	op := plan.UpdateGuest{GuestID: "g1", Note: strp("x")}
	tests := []struct {
		name    string
		eventID string
		user    string
		lock    string
		lockTTL time.Duration
		code    plan.Code // empty means committed
	}{
		{"owner", eventID, owner, "", 0, ""},
		{"unknown event", "nope", owner, "", 0, plan.CodeNotFound},
		{"non-owner", eventID, "mallory", "", 0, plan.CodeForbidden},
		{"owner while another holds the lock", eventID, owner, "alice", time.Minute, plan.CodeLocked},
		{"owner ignores an expired lock", eventID, owner, "alice", -time.Second, ""},
		{"lock holder who is not the owner", eventID, "alice", "alice", time.Minute, ""},
		{"former lock holder after expiry", eventID, "alice", "alice", -time.Second, plan.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.lock != "" {
				f.lockBy(tt.lock, tt.lockTTL)
			}
			res, err := f.eng.Single(context.Background(), tt.eventID, tt.user, 5, op)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(6), res.AutosaveVersion)
				return
			}
			perr := requirePlanError(t, err, tt.code)
			if tt.code == plan.CodeLocked {
				assert.Equal(t, tt.lock, perr.Details["lock_holder"])
			}
			if tt.eventID == eventID {
				assert.Equal(t, int64(5), f.stored(t).AutosaveVersion)
			}
		})
	}
}

func TestExecuteAuthorizesBeforeVersion(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Single(context.Background(), eventID, "mallory", 1, plan.RemoveGuest{GuestID: "g1"})
	requirePlanError(t, err, plan.CodeForbidden)
}

func TestExecuteIntegrityFailure(t *testing.T) {
	f := newFixture(t)
	ev := f.stored(t)
	ev.Plan.Tables[1].SetOccupant(1, strp("g1"))
	f.store.Put(ev)

	_, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.UpdateGuest{GuestID: "g3", Note: strp("x")})
	perr := requirePlanError(t, err, plan.CodeIntegrity)
	assert.Nil(t, perr.OpIndex)
	assert.Equal(t, int64(5), f.stored(t).AutosaveVersion)
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t)
	ev, err := f.eng.CreateEvent(context.Background(), "", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "bob", ev.OwnerID)
	assert.Equal(t, int64(0), ev.AutosaveVersion)
	assert.Equal(t, model.NewPlanDocument(), ev.Plan)

	_, err = f.eng.CreateEvent(context.Background(), eventID, "bob")
	requirePlanError(t, err, plan.CodeDuplicateID)
}

func TestGetPlan(t *testing.T) {
	f := newFixture(t)
	ev, err := f.eng.GetPlan(context.Background(), eventID, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(5), ev.AutosaveVersion)

	_, err = f.eng.GetPlan(context.Background(), eventID, "alice")
	requirePlanError(t, err, plan.CodeForbidden)

	f.eng.Editors = allowList{"alice": true}
	_, err = f.eng.GetPlan(context.Background(), eventID, "alice")
	require.NoError(t, err)
}

func TestNewDefaults(t *testing.T) {
	e := New(repository.NewMemoryPlanRepo(), Config{MaxOps: 500})
	assert.Equal(t, DefaultConfig(), e.Config)
	assert.Panics(t, func() { New(nil, Config{}) })
}
