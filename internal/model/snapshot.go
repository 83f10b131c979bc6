package model

import "time"

// Snapshot is an immutable copy of a plan document taken right before a
// structurally significant batch.  PrevID links to the previous snapshot of
// the same event, forming an append-only chain.
//
// Fields:
//  ID        – snapshot identifier (uuid).
//  EventID   – owning event.
//  Version   – autosave_version the captured document had.
//  Plan      – the captured document.
//  PrevID    – previous snapshot in the chain (nil for the first).
//  Reasons   – operation kinds that triggered the snapshot.
//  CreatedBy – user whose batch triggered it.
//  CreatedAt – creation timestamp.
type Snapshot struct {
	ID        string        `json:"id"`
	EventID   string        `json:"event_id"`
	Version   int64         `json:"version"`
	Plan      *PlanDocument `json:"plan_data,omitempty"`
	PrevID    *string       `json:"prev_id"`
	Reasons   []string      `json:"reasons"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

// Summary returns a copy without the captured document, used for listings.
func (s Snapshot) Summary() Snapshot {
	s.Plan = nil
	return s
}
