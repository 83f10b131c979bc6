package model

import "time"

// AuditEntry records one applied plan operation.  Entries of a batch share
// the event and user and are written together with the document commit
// when the store allows it.
type AuditEntry struct {
	ID         string         `json:"id"`
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
