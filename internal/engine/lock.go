package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/plan"
)

// LockState is the advisory lock as seen by clients.
type LockState struct {
	EventID   string     `json:"event_id"`
	Holder    *string    `json:"lock_holder"`
	ExpiresAt *time.Time `json:"lock_expires_at"`
}

// AcquireLock grants or renews the advisory editor lock for userID.  The
// owner and editors allowed by the policy may take it when it is free,
// expired or already theirs; otherwise LOCKED is returned with the current
// holder.
func (e *Engine) AcquireLock(ctx context.Context, eventID, userID string) (*LockState, error) {
	ev, err := e.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.canEdit(ctx, ev, userID) {
		return nil, forbidden(eventID)
	}
	now := e.Now()
	if holder, ok := ev.ActiveLockHolder(now); ok && holder != userID {
		return nil, lockedBy(ev)
	}
	exp := now.Add(e.Config.LockTTL)
	ok, err := e.Store.SetLock(ctx, eventID, userID, exp, now)
	if err != nil {
		return nil, e.internal(err, logrus.Fields{"event_id": eventID, "op": "lock"})
	}
	if !ok {
		// lost a race with another editor
		cur, err := e.load(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if _, active := cur.ActiveLockHolder(e.Now()); active {
			return nil, lockedBy(cur)
		}
		return nil, plan.Errorf(plan.CodeLocked, "event lock is contended, retry")
	}
	holder := userID
	return &LockState{EventID: eventID, Holder: &holder, ExpiresAt: &exp}, nil
}

// ReleaseLock drops the advisory lock.  The holder may release it, and
// the owner may break it.  Releasing a lock that is absent or expired
// succeeds.
func (e *Engine) ReleaseLock(ctx context.Context, eventID, userID string) (*LockState, error) {
	ev, err := e.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	holder, active := ev.ActiveLockHolder(e.Now())
	switch {
	case active && holder == userID:
	case ev.OwnerID == userID:
	case !active && e.canEdit(ctx, ev, userID):
	default:
		if active {
			return nil, lockedBy(ev)
		}
		return nil, forbidden(eventID)
	}
	if err := e.Store.ClearLock(ctx, eventID); err != nil {
		return nil, e.internal(err, logrus.Fields{"event_id": eventID, "op": "unlock"})
	}
	return &LockState{EventID: eventID}, nil
}
