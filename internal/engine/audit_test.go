package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/metrics"
	"github.com/iliyamo/seating-plan/internal/plan"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAuditHandoffRetries(t *testing.T) {
	f := newFixture(t)
	f.sink.fails = 2
	f.eng.Metrics = metrics.New(prometheus.NewRegistry())

	_, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.AssignGuestSeat{GuestID: "g3", TableID: "t2"})
	require.NoError(t, err)
	f.eng.Wait()

	assert.Equal(t, 3, f.sink.calls)
	entries := f.sink.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "assign_guest_seat", entries[0].ActionType)
	assert.Equal(t, map[string]any{"guest_id": "g3", "table_id": "t2", "seat_no": 1}, entries[0].Details["after"])
	assert.Equal(t, 1.0, counterValue(t, f.eng.Metrics.AuditHandoffs.WithLabelValues("ok")))
}

func TestAuditHandoffGivesUp(t *testing.T) {
	f := newFixture(t)
	f.sink.fails = 100
	f.eng.Metrics = metrics.New(prometheus.NewRegistry())

	res, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.RemoveGuest{GuestID: "g1"})
	require.NoError(t, err, "a failed hand-off never fails the commit")
	assert.Equal(t, int64(6), res.AutosaveVersion)
	f.eng.Wait()

	assert.Equal(t, f.eng.Config.AuditRetries, f.sink.calls)
	assert.Empty(t, f.sink.entries())
	assert.Equal(t, 1.0, counterValue(t, f.eng.Metrics.AuditHandoffs.WithLabelValues("failed")))
}

func TestDirectAuditSinkWritesToStore(t *testing.T) {
	f := newFixture(t)
	f.eng.Audit = DirectAuditSink{Writer: f.store}

	ops := []plan.Op{
		plan.RemoveGuest{GuestID: "g2"},
		plan.UpdateTable{TableID: "t1", Capacity: intp(1)},
	}
	_, err := f.eng.Execute(context.Background(), BatchRequest{EventID: eventID, UserID: owner, Version: 5, Ops: ops})
	require.NoError(t, err)
	f.eng.Wait()

	entries := f.store.AuditEntries(eventID)
	require.Len(t, entries, 2)
	assert.Equal(t, "remove_guest", entries[0].ActionType)
	assert.Equal(t, []string{"t1"}, entries[0].Details["cleared_tables"])
	assert.Equal(t, "update_table", entries[1].ActionType)
	assert.Equal(t, 1, entries[1].Details["op_index"])
}

func TestNotifierReceivesCommit(t *testing.T) {
	f := newFixture(t)
	n := &fakeNotifier{}
	f.eng.Notifier = n

	res, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.RemoveTable{TableID: "t2"})
	require.NoError(t, err)
	f.eng.Wait()

	require.Len(t, n.got, 1)
	got := n.got[0]
	assert.Equal(t, eventID, got.EventID)
	assert.Equal(t, owner, got.UserID)
	assert.Equal(t, int64(6), got.AutosaveVersion)
	assert.Equal(t, []string{"remove_table"}, got.Actions)
	require.NotNil(t, got.SnapshotID)
	assert.Equal(t, res.Snapshot.ID, *got.SnapshotID)
}

func TestNoSinkDropsAudit(t *testing.T) {
	f := newFixture(t)
	f.eng.Audit = nil

	res, err := f.eng.Single(context.Background(), eventID, owner, 5, plan.RemoveGuest{GuestID: "g3"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.AutosaveVersion)
	f.eng.Wait()
	assert.Empty(t, f.store.AuditEntries(eventID))
}
