package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/repository"
)

// ListSnapshots returns the snapshot chain of an event, newest first,
// without documents.
func (e *Engine) ListSnapshots(ctx context.Context, eventID, userID string) ([]model.Snapshot, error) {
	if _, err := e.GetPlan(ctx, eventID, userID); err != nil {
		return nil, err
	}
	out, err := e.Store.ListSnapshots(ctx, eventID)
	if err != nil {
		return nil, e.internal(err, logrus.Fields{"event_id": eventID, "op": "list_snapshots"})
	}
	return out, nil
}

// GetSnapshot returns one snapshot with its document.
func (e *Engine) GetSnapshot(ctx context.Context, eventID, snapshotID, userID string) (*model.Snapshot, error) {
	if _, err := e.GetPlan(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return e.fetchSnapshot(ctx, eventID, snapshotID)
}

// Restore replaces the current document with the one captured by a
// snapshot.  It is a mutation like any other: same preconditions, version
// +1, and the document being replaced is snapshotted first so the restore
// itself can be undone.
func (e *Engine) Restore(ctx context.Context, eventID, snapshotID, userID string, version int64) (*Result, error) {
	return e.run(ctx, eventID, userID, version, 1, func(ctx context.Context, doc *model.PlanDocument) (mutation, error) {
		snap, err := e.fetchSnapshot(ctx, eventID, snapshotID)
		if err != nil {
			return mutation{}, err
		}
		next := snap.Plan.Clone()
		next.Normalize()
		if vs := plan.CheckIntegrity(next); len(vs) > 0 {
			return mutation{}, plan.IntegrityError(vs)
		}
		fact := plan.Fact{
			Action: plan.KindRestoreSnapshot,
			Before: map[string]any{"tables": len(doc.Tables), "guests": len(doc.Guests)},
			After: map[string]any{
				"snapshot_id":      snap.ID,
				"snapshot_version": snap.Version,
				"tables":           len(next.Tables),
				"guests":           len(next.Guests),
			},
		}
		return mutation{plan: next, facts: []plan.Fact{fact}, reasons: []string{ReasonRestore}}, nil
	})
}

func (e *Engine) fetchSnapshot(ctx context.Context, eventID, snapshotID string) (*model.Snapshot, error) {
	snap, err := e.Store.GetSnapshot(ctx, eventID, snapshotID)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			return nil, plan.NewError(plan.CodeNotFound, "snapshot not found", map[string]any{"snapshot_id": snapshotID})
		}
		return nil, e.internal(err, logrus.Fields{"event_id": eventID, "snapshot_id": snapshotID})
	}
	return snap, nil
}
