package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/repository"
)

// Stage names a step of the request lifecycle.  It labels abort metrics
// and log lines.
type Stage string

const (
	StageExistence Stage = "existence"
	StageAuthorize Stage = "ownership_or_lock"
	StageVersion   Stage = "version"
	StageApply     Stage = "apply"
	StageIntegrity Stage = "integrity"
	StagePersist   Stage = "persist"
)

// mutation is the outcome of the apply step of one request.
type mutation struct {
	plan    *model.PlanDocument
	facts   []plan.Fact
	reasons []string // snapshot reasons; empty means no snapshot
}

type mutateFunc func(ctx context.Context, doc *model.PlanDocument) (mutation, error)

// atomicAuditor is implemented by stores that report whether they write
// audit entries inside CommitPlan.
type atomicAuditor interface {
	AuditsAtomically() bool
}

// run is the single request lifecycle shared by every mutating entry
// point: existence, ownership or lock, version, apply, integrity and the
// compare-and-swap persist.  The first failing step ends the request and
// nothing is written.
func (e *Engine) run(ctx context.Context, eventID, userID string, version int64, nOps int, mutate mutateFunc) (*Result, error) {
	log := e.Log.WithFields(logrus.Fields{"event_id": eventID, "user_id": userID})

	ev, err := e.load(ctx, eventID)
	if err != nil {
		return nil, e.abort(log, StageExistence, err)
	}
	if perr := e.authorize(ctx, ev, userID); perr != nil {
		return nil, e.abort(log, StageAuthorize, perr)
	}
	if ev.AutosaveVersion != version {
		return nil, e.abort(log, StageVersion, versionConflict(ev.AutosaveVersion, version))
	}

	m, err := mutate(ctx, ev.Plan)
	if err != nil {
		if perr, ok := plan.AsError(err); ok {
			stage := StageApply
			if perr.Code == plan.CodeIntegrity {
				stage = StageIntegrity
			}
			return nil, e.abort(log, stage, perr)
		}
		return nil, e.abort(log, StageApply, e.internal(err, logrus.Fields{"event_id": eventID}))
	}

	now := e.Now()
	commit := repository.Commit{
		EventID:         ev.ID,
		ExpectedVersion: ev.AutosaveVersion,
		Plan:            m.plan,
	}
	if len(m.reasons) > 0 {
		commit.Snapshot = e.newSnapshot(ev, userID, m.reasons, now)
	}
	entries := e.BuildAuditEntries(ev.ID, userID, ev.AutosaveVersion+1, m.facts, now)
	atomic := false
	if aa, ok := e.Store.(atomicAuditor); ok {
		atomic = aa.AuditsAtomically()
	}
	if atomic {
		commit.Audit = entries
	}

	if err := e.Store.CommitPlan(ctx, commit); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			current := ev.AutosaveVersion
			if cur, rerr := e.Store.GetEvent(ctx, ev.ID); rerr == nil {
				current = cur.AutosaveVersion
			}
			return nil, e.abort(log, StagePersist, versionConflict(current, version))
		}
		return nil, e.abort(log, StagePersist, e.internal(err, logrus.Fields{"event_id": eventID, "stage": StagePersist}))
	}

	if !atomic {
		e.handoff(entries)
	}
	e.notify(ev.ID, userID, ev.AutosaveVersion+1, m.facts, commit.Snapshot, now)
	e.Metrics.ObserveCommit(nOps, commit.Snapshot != nil)
	log.WithFields(logrus.Fields{
		"version":  ev.AutosaveVersion + 1,
		"ops":      nOps,
		"snapshot": commit.Snapshot != nil,
	}).Debug("plan committed")

	return &Result{
		EventID:         ev.ID,
		AutosaveVersion: ev.AutosaveVersion + 1,
		Plan:            m.plan,
		AppliedOps:      nOps,
		Facts:           m.facts,
		Snapshot:        commit.Snapshot,
	}, nil
}

// authorize implements the ownership-or-lock gate.  The active lock holder
// may always edit.  Anyone else must own the event, and even the owner is
// turned away while another user holds an unexpired lock.  Expired locks
// are ignored.
func (e *Engine) authorize(_ context.Context, ev *model.Event, userID string) *plan.Error {
	holder, locked := ev.ActiveLockHolder(e.Now())
	if locked && holder == userID {
		return nil
	}
	if ev.OwnerID != userID {
		return forbidden(ev.ID)
	}
	if locked {
		return lockedBy(ev)
	}
	return nil
}

// load reads the event, mapping a missing or deleted event to NOT_FOUND.
func (e *Engine) load(ctx context.Context, eventID string) (*model.Event, error) {
	ev, err := e.Store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, plan.NewError(plan.CodeNotFound, "event not found", map[string]any{"event_id": eventID})
		}
		return nil, e.internal(err, logrus.Fields{"event_id": eventID, "stage": StageExistence})
	}
	if ev.Plan == nil {
		ev.Plan = model.NewPlanDocument()
	}
	return ev, nil
}

// abort records a failed request and returns err unchanged.
func (e *Engine) abort(log logrus.FieldLogger, stage Stage, err error) error {
	code := string(plan.CodeInternal)
	if perr, ok := plan.AsError(err); ok {
		code = string(perr.Code)
		if perr.Class() != plan.ClassInternal {
			log.WithFields(logrus.Fields{"stage": stage, "code": code}).Debug("plan request rejected")
		}
	}
	e.Metrics.ObserveAbort(code, string(stage))
	return err
}

// internal logs the cause and returns a generic INTERNAL error so storage
// details never reach the caller.
func (e *Engine) internal(err error, fields logrus.Fields) *plan.Error {
	e.Log.WithFields(fields).WithError(err).Error("plan engine storage failure")
	return plan.Errorf(plan.CodeInternal, "internal error")
}

func forbidden(eventID string) *plan.Error {
	return plan.NewError(plan.CodeForbidden, "not allowed to edit this event", map[string]any{"event_id": eventID})
}

func lockedBy(ev *model.Event) *plan.Error {
	return plan.NewError(plan.CodeLocked, "event is locked by another editor", map[string]any{
		"lock_holder":     *ev.LockHolder,
		"lock_expires_at": ev.LockExpiresAt.UTC().Format(time.RFC3339),
	})
}

func versionConflict(current, provided int64) *plan.Error {
	return plan.NewError(plan.CodeVersionConflict, "plan was modified by another request", map[string]any{
		"current":  current,
		"provided": provided,
	})
}
