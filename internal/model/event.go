package model

import "time"

// Event is the aggregate that owns a plan document.  This struct
// corresponds to a row in the `events` table joined with its plan.
//
// Fields:
//  ID               – primary key identifier.
//  OwnerID          – user ID of the event owner.
//  AutosaveVersion  – optimistic concurrency counter, +1 per committed request.
//  LockHolder       – user holding the advisory editor lock (nil if none).
//  LockExpiresAt    – when the advisory lock lapses (nil if none).
//  Deleted          – soft-delete flag.
//  LatestSnapshotID – head of the snapshot chain (nil before the first snapshot).
//  Plan             – the current plan document.
//  UpdatedAt        – last update timestamp.
type Event struct {
	ID               string        // events.id
	OwnerID          string        // events.owner_id
	AutosaveVersion  int64         // events.autosave_version
	LockHolder       *string       // events.lock_holder (nullable)
	LockExpiresAt    *time.Time    // events.lock_expires_at (nullable)
	Deleted          bool          // events.deleted
	LatestSnapshotID *string       // events.latest_snapshot_id (nullable)
	Plan             *PlanDocument // events.plan_data
	UpdatedAt        time.Time     // events.updated_at
}

// ActiveLockHolder returns the lock holder when the lock has not expired
// at now.  Expired locks are treated as absent.
func (e *Event) ActiveLockHolder(now time.Time) (string, bool) {
	if e.LockHolder == nil || *e.LockHolder == "" || e.LockExpiresAt == nil {
		return "", false
	}
	if !e.LockExpiresAt.After(now) {
		return "", false
	}
	return *e.LockHolder, true
}
