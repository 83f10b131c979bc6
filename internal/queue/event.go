// Package queue defines the message payloads exchanged over the message
// broker and the background consumer that persists audit entries.
package queue

import "github.com/iliyamo/seating-plan/internal/model"

// Queue names.  Both queues are durable and carry persistent JSON messages.
const (
	AuditQueueName     = "plan.audit"
	CommittedQueueName = "plan.committed"
)

// PlanAuditMessage carries the audit entries of one committed plan request
// when the store could not write them in the same transaction.  Entry ids
// are stable so redelivery is harmless.
type PlanAuditMessage struct {
	EventID string             `json:"event_id"`
	Version int64              `json:"version"`
	Entries []model.AuditEntry `json:"entries"`
	SentAt  string             `json:"sent_at"`
}

// PlanCommittedEvent is published after every committed plan request.  It
// lets downstream consumers (exports, notifications) react without polling
// the primary database.
type PlanCommittedEvent struct {
	EventID         string   `json:"event_id"`
	UserID          string   `json:"user_id"`
	AutosaveVersion int64    `json:"autosave_version"`
	AppliedOps      int      `json:"applied_ops"`
	Actions         []string `json:"actions"`
	SnapshotID      *string  `json:"snapshot_id,omitempty"`
	CommittedAt     string   `json:"committed_at"`
}
