package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seating-plan/internal/model"
)

// MemoryPlanRepo is an in-process store with the same semantics as
// PlanRepo.  It is used for tests and for running the service without
// MySQL.  The mutex only makes its own compare-and-swap atomic; it cannot
// write audit entries in the commit, so audit is handed off separately.
type MemoryPlanRepo struct {
	mu        sync.Mutex
	events    map[string]*model.Event
	snapshots map[string][]model.Snapshot
	audit     []model.AuditEntry
	now       func() time.Time
}

// NewMemoryPlanRepo returns an empty in-memory store.
func NewMemoryPlanRepo() *MemoryPlanRepo {
	return &MemoryPlanRepo{
		events:    map[string]*model.Event{},
		snapshots: map[string][]model.Snapshot{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AuditsAtomically reports that audit entries are not part of a commit.
func (r *MemoryPlanRepo) AuditsAtomically() bool { return false }

// CreateEvent inserts an event owned by ownerID with an empty plan.
func (r *MemoryPlanRepo) CreateEvent(_ context.Context, id, ownerID string) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; ok {
		return nil, ErrEventExists
	}
	ev := &model.Event{ID: id, OwnerID: ownerID, Plan: model.NewPlanDocument(), UpdatedAt: r.now()}
	r.events[id] = ev
	return copyEvent(ev), nil
}

// Put stores ev as is, replacing any event with the same id.
func (r *MemoryPlanRepo) Put(ev *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.ID] = copyEvent(ev)
}

// GetEvent returns a copy of the stored event.
func (r *MemoryPlanRepo) GetEvent(_ context.Context, id string) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok || ev.Deleted {
		return nil, ErrEventNotFound
	}
	return copyEvent(ev), nil
}

// CommitPlan replaces the plan when the stored version still matches.
func (r *MemoryPlanRepo) CommitPlan(_ context.Context, c Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[c.EventID]
	if !ok || ev.Deleted || ev.AutosaveVersion != c.ExpectedVersion {
		return ErrVersionConflict
	}
	ev.Plan = c.Plan.Clone()
	ev.AutosaveVersion++
	ev.UpdatedAt = r.now()
	if c.Snapshot != nil {
		s := *c.Snapshot
		s.Plan = c.Snapshot.Plan.Clone()
		r.snapshots[c.EventID] = append(r.snapshots[c.EventID], s)
		id := s.ID
		ev.LatestSnapshotID = &id
	}
	r.audit = append(r.audit, c.Audit...)
	return nil
}

// SetLock grants the advisory lock when free, expired or already held by holder.
func (r *MemoryPlanRepo) SetLock(_ context.Context, eventID, holder string, expiresAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok || ev.Deleted {
		return false, nil
	}
	if cur, active := ev.ActiveLockHolder(now); active && cur != holder {
		return false, nil
	}
	h, exp := holder, expiresAt.UTC()
	ev.LockHolder, ev.LockExpiresAt = &h, &exp
	return true, nil
}

// ClearLock removes the advisory lock of an event.
func (r *MemoryPlanRepo) ClearLock(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[eventID]; ok {
		ev.LockHolder, ev.LockExpiresAt = nil, nil
	}
	return nil
}

// ListSnapshots returns snapshot summaries newest first.
func (r *MemoryPlanRepo) ListSnapshots(_ context.Context, eventID string) ([]model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Snapshot, 0, len(r.snapshots[eventID]))
	for _, s := range r.snapshots[eventID] {
		out = append(out, s.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// GetSnapshot returns one snapshot with its document.
func (r *MemoryPlanRepo) GetSnapshot(_ context.Context, eventID, snapshotID string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snapshots[eventID] {
		if s.ID == snapshotID {
			cp := s
			cp.Plan = s.Plan.Clone()
			return &cp, nil
		}
	}
	return nil, ErrSnapshotNotFound
}

// InsertAuditEntries appends entries, skipping ids already present.
func (r *MemoryPlanRepo) InsertAuditEntries(_ context.Context, entries []model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.audit))
	for _, e := range r.audit {
		seen[e.ID] = true
	}
	for _, e := range entries {
		if !seen[e.ID] {
			r.audit = append(r.audit, e)
			seen[e.ID] = true
		}
	}
	return nil
}

// AuditEntries returns the audit entries recorded for an event.
func (r *MemoryPlanRepo) AuditEntries(eventID string) []model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range r.audit {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out
}

func copyEvent(ev *model.Event) *model.Event {
	cp := *ev
	cp.Plan = ev.Plan.Clone()
	if ev.LockHolder != nil {
		h := *ev.LockHolder
		cp.LockHolder = &h
	}
	if ev.LockExpiresAt != nil {
		t := *ev.LockExpiresAt
		cp.LockExpiresAt = &t
	}
	if ev.LatestSnapshotID != nil {
		s := *ev.LatestSnapshotID
		cp.LatestSnapshotID = &s
	}
	return &cp
}
