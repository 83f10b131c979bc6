package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/queue"
	"github.com/iliyamo/seating-plan/internal/repository"
)

const (
	eventID = "ev1"
	owner   = "owner"
)

type fixture struct {
	store *repository.MemoryPlanRepo
	eng   *Engine
	sink  *fakeSink
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryPlanRepo(),
		sink:  &fakeSink{},
		now:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.Put(&model.Event{ID: eventID, OwnerID: owner, AutosaveVersion: 5, Plan: seededPlan()})

	log, _ := test.NewNullLogger()
	f.eng = New(f.store, Config{AuditRetries: 3, AuditRetryBackoff: time.Millisecond})
	f.eng.Log = log
	f.eng.Audit = f.sink
	f.eng.Now = func() time.Time { return f.now }
	var n int
	var mu sync.Mutex
	f.eng.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return f
}

// seededPlan has t1 (capacity 4) seating g1 at 1 and g2 at 3, an empty t2
// (capacity 2) and an unseated g3.
func seededPlan() *model.PlanDocument {
	g1, g2 := "g1", "g2"
	doc := model.NewPlanDocument()
	doc.Tables = []model.Table{
		{ID: "t1", Shape: "round", Capacity: 4, StartIndex: 1, HeadSeat: 1, Direction: "clockwise",
			Seats: []model.SeatAssignment{{SeatNo: 1, GuestID: &g1}, {SeatNo: 3, GuestID: &g2}}},
		{ID: "t2", Shape: "long", Capacity: 2, StartIndex: 1, HeadSeat: 1, Direction: "clockwise",
			Seats: []model.SeatAssignment{}},
	}
	doc.Guests = []model.Guest{{ID: "g1", Name: "Ada"}, {ID: "g2", Name: "Grace"}, {ID: "g3", Name: "Linus"}}
	return doc
}

func (f *fixture) stored(t *testing.T) *model.Event {
	t.Helper()
	ev, err := f.store.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	return ev
}

func (f *fixture) lockBy(holder string, ttl time.Duration) {
	ev, _ := f.store.GetEvent(context.Background(), eventID)
	exp := f.now.Add(ttl)
	ev.LockHolder, ev.LockExpiresAt = &holder, &exp
	f.store.Put(ev)
}

func requirePlanError(t *testing.T, err error, code plan.Code) *plan.Error {
	t.Helper()
	require.Error(t, err)
	perr, ok := plan.AsError(err)
	require.True(t, ok, "not a plan error: %v", err)
	require.Equal(t, code, perr.Code, perr.Error())
	return perr
}

type fakeSink struct {
	mu    sync.Mutex
	fails int
	calls int
	got   []model.AuditEntry
}

func (s *fakeSink) PublishAudit(_ context.Context, entries []model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.fails {
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, entries...)
	return nil
}

func (s *fakeSink) entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.got...)
}

type fakeNotifier struct {
	mu  sync.Mutex
	got []queue.PlanCommittedEvent
}

func (n *fakeNotifier) PublishPlanCommitted(_ context.Context, ev queue.PlanCommittedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, ev)
	return nil
}

type allowList map[string]bool

func (a allowList) CanEdit(_ context.Context, _ *model.Event, userID string) bool { return a[userID] }

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }
