// Package repository defines the persistence layer for events, their plan
// documents, audit entries and snapshots, together with error values
// reused by every store implementation.  These sentinel values allow the
// engine to distinguish between failure scenarios without knowing which
// backend is in use.  For example, ErrVersionConflict signals that the
// compare-and-swap on autosave_version lost a race, while
// ErrEventNotFound means the event does not exist or was soft-deleted.
package repository

import "errors"

// ErrEventNotFound is returned when an event lookup fails or the event is
// soft-deleted.  Handlers should translate this into an HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrVersionConflict is returned when a conditional write finds a stored
// autosave_version different from the expected one.  Handlers should
// translate this into an HTTP 409 response.
var ErrVersionConflict = errors.New("version conflict")

// ErrSnapshotNotFound is returned when a snapshot lookup fails.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrEventExists is returned when creating an event whose id is taken.
var ErrEventExists = errors.New("event already exists")
