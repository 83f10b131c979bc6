package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/queue"
)

// AuditSink receives audit entries out of band when the store cannot write
// them in the commit.  The RabbitMQ publisher and DirectAuditSink
// implement it.
type AuditSink interface {
	PublishAudit(ctx context.Context, entries []model.AuditEntry) error
}

// CommitNotifier is told about committed requests.  The RabbitMQ
// publisher implements it with the plan.committed queue.
type CommitNotifier interface {
	PublishPlanCommitted(ctx context.Context, ev queue.PlanCommittedEvent) error
}

// AuditWriter persists audit entries.  Both repositories implement it.
type AuditWriter interface {
	InsertAuditEntries(ctx context.Context, entries []model.AuditEntry) error
}

// DirectAuditSink writes audit entries straight to an AuditWriter.  It is
// used when no message broker is configured.
type DirectAuditSink struct {
	Writer AuditWriter
}

// PublishAudit implements AuditSink.
func (s DirectAuditSink) PublishAudit(ctx context.Context, entries []model.AuditEntry) error {
	return s.Writer.InsertAuditEntries(ctx, entries)
}

// BuildAuditEntries maps the facts of one committed request to audit
// entries, one per applied operation, in operation order.  version is the
// autosave_version the commit produced.
func (e *Engine) BuildAuditEntries(eventID, userID string, version int64, facts []plan.Fact, at time.Time) []model.AuditEntry {
	out := make([]model.AuditEntry, 0, len(facts))
	for i, f := range facts {
		details := map[string]any{
			"op_index": i,
			"version":  version,
		}
		if f.Before != nil {
			details["before"] = f.Before
		}
		if f.After != nil {
			details["after"] = f.After
		}
		if len(f.ClearedTables) > 0 {
			details["cleared_tables"] = f.ClearedTables
		}
		out = append(out, model.AuditEntry{
			ID:         e.NewID(),
			EventID:    eventID,
			UserID:     userID,
			ActionType: string(f.Action),
			Details:    details,
			CreatedAt:  at,
		})
	}
	return out
}

// handoff delivers entries to the sink in the background.  The commit is
// already authoritative: failures are retried with doubling backoff and
// finally logged, never surfaced to the caller.
func (e *Engine) handoff(entries []model.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	if e.Audit == nil {
		e.Log.WithField("entries", len(entries)).Warn("no audit sink configured; audit entries dropped")
		e.Metrics.ObserveHandoff(false)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		backoff := e.Config.AuditRetryBackoff
		var err error
		for attempt := 1; attempt <= e.Config.AuditRetries; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = e.Audit.PublishAudit(ctx, entries)
			cancel()
			if err == nil {
				e.Metrics.ObserveHandoff(true)
				return
			}
			e.Log.WithFields(logrus.Fields{
				"event_id": entries[0].EventID,
				"attempt":  attempt,
			}).WithError(err).Warn("audit hand-off failed")
			if attempt < e.Config.AuditRetries {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		e.Metrics.ObserveHandoff(false)
		e.Log.WithFields(logrus.Fields{
			"event_id": entries[0].EventID,
			"entries":  len(entries),
		}).WithError(err).Error("audit entries lost after retries")
	}()
}

// notify publishes a plan.committed event in the background.  It is fire
// and forget: a failure is logged once.
func (e *Engine) notify(eventID, userID string, version int64, facts []plan.Fact, snap *model.Snapshot, at time.Time) {
	if e.Notifier == nil || len(facts) == 0 {
		return
	}
	actions := make([]string, len(facts))
	for i, f := range facts {
		actions[i] = string(f.Action)
	}
	msg := queue.PlanCommittedEvent{
		EventID:         eventID,
		UserID:          userID,
		AutosaveVersion: version,
		AppliedOps:      len(facts),
		Actions:         actions,
		CommittedAt:     at.UTC().Format(time.RFC3339),
	}
	if snap != nil {
		id := snap.ID
		msg.SnapshotID = &id
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Notifier.PublishPlanCommitted(ctx, msg); err != nil {
			e.Log.WithFields(logrus.Fields{"event_id": msg.EventID, "version": version}).
				WithError(err).Warn("plan.committed publish failed")
		}
	}()
}
