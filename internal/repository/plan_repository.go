package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/seating-plan/internal/model"
)

// PlanRepo persists events, their plan documents, audit entries and
// snapshots in MySQL.  The plan document lives on the events row so that
// the compare-and-swap on autosave_version and the document replacement
// are a single-row UPDATE.  All timestamps are stored in UTC.
type PlanRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPlanRepo returns a PlanRepo bound to the given database.  Each call
// is cut off after timeout; zero leaves the caller's context alone.
func NewPlanRepo(db *sql.DB, timeout time.Duration) *PlanRepo {
	return &PlanRepo{db: db, timeout: timeout}
}

func (r *PlanRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// AuditsAtomically reports that audit rows are written inside the commit
// transaction.
func (r *PlanRepo) AuditsAtomically() bool { return true }

// CreateEvent inserts an event owned by ownerID with an empty plan.
func (r *PlanRepo) CreateEvent(ctx context.Context, id, ownerID string) (*model.Event, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	body, err := json.Marshal(model.NewPlanDocument())
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO events (id, owner_id, autosave_version, plan_data) VALUES (?, ?, 0, ?)`
	if _, err := r.db.ExecContext(ctx, q, id, ownerID, string(body)); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 { // duplicate entry
			return nil, ErrEventExists
		}
		return nil, err
	}
	return r.GetEvent(ctx, id)
}

// GetEvent loads an event and its plan.  Soft-deleted events are reported
// as ErrEventNotFound.
func (r *PlanRepo) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `SELECT id, owner_id, autosave_version, lock_holder, lock_expires_at, deleted,
	                  latest_snapshot_id, plan_data, updated_at
	           FROM events WHERE id = ?`
	var (
		ev         model.Event
		lockHolder sql.NullString
		lockExp    sql.NullTime
		latest     sql.NullString
		planData   []byte
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ev.ID, &ev.OwnerID, &ev.AutosaveVersion, &lockHolder, &lockExp, &ev.Deleted,
		&latest, &planData, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if ev.Deleted {
		return nil, ErrEventNotFound
	}
	if lockHolder.Valid {
		h := lockHolder.String
		ev.LockHolder = &h
	}
	if lockExp.Valid {
		t := lockExp.Time.UTC()
		ev.LockExpiresAt = &t
	}
	if latest.Valid {
		s := latest.String
		ev.LatestSnapshotID = &s
	}
	doc, err := decodePlan(planData)
	if err != nil {
		return nil, fmt.Errorf("decode plan of event %s: %w", id, err)
	}
	ev.Plan = doc
	return &ev, nil
}

// CommitPlan performs the conditional write.  The UPDATE only matches
// when autosave_version still equals c.ExpectedVersion; a miss rolls the
// transaction back and returns ErrVersionConflict.  Snapshot and audit
// rows are written in the same transaction.
func (r *PlanRepo) CommitPlan(ctx context.Context, c Commit) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	body, err := json.Marshal(c.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var latest any
	if c.Snapshot != nil {
		latest = c.Snapshot.ID
	}
	const upd = `UPDATE events
	             SET plan_data = ?, autosave_version = autosave_version + 1,
	                 latest_snapshot_id = COALESCE(?, latest_snapshot_id), updated_at = UTC_TIMESTAMP(3)
	             WHERE id = ? AND autosave_version = ? AND deleted = 0`
	res, err := tx.ExecContext(ctx, upd, string(body), latest, c.EventID, c.ExpectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	if c.Snapshot != nil {
		if err := insertSnapshotTx(ctx, tx, c.Snapshot); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	if err := insertAudit(ctx, tx, "INSERT", c.Audit); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetLock grants the advisory lock to holder until expiresAt when the lock
// is free, expired at now, or already held by holder.  It reports whether
// the lock was granted.
func (r *PlanRepo) SetLock(ctx context.Context, eventID, holder string, expiresAt, now time.Time) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `UPDATE events SET lock_holder = ?, lock_expires_at = ?
	           WHERE id = ? AND deleted = 0
	             AND (lock_holder IS NULL OR lock_expires_at IS NULL OR lock_expires_at <= ? OR lock_holder = ?)`
	res, err := r.db.ExecContext(ctx, q, holder, expiresAt.UTC(), eventID, now.UTC(), holder)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearLock removes the advisory lock of an event.
func (r *PlanRepo) ClearLock(ctx context.Context, eventID string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `UPDATE events SET lock_holder = NULL, lock_expires_at = NULL WHERE id = ? AND deleted = 0`
	_, err := r.db.ExecContext(ctx, q, eventID)
	return err
}

// ListSnapshots returns the snapshots of an event newest first, without
// their documents.
func (r *PlanRepo) ListSnapshots(ctx context.Context, eventID string) ([]model.Snapshot, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `SELECT id, event_id, version, prev_id, reasons, created_by, created_at
	           FROM plan_snapshots WHERE event_id = ?
	           ORDER BY version DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Snapshot{}
	for rows.Next() {
		var (
			s       model.Snapshot
			prev    sql.NullString
			reasons []byte
		)
		if err := rows.Scan(&s.ID, &s.EventID, &s.Version, &prev, &reasons, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		if prev.Valid {
			p := prev.String
			s.PrevID = &p
		}
		if err := json.Unmarshal(reasons, &s.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons of snapshot %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSnapshot loads one snapshot with its document.
func (r *PlanRepo) GetSnapshot(ctx context.Context, eventID, snapshotID string) (*model.Snapshot, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	const q = `SELECT id, event_id, version, plan_data, prev_id, reasons, created_by, created_at
	           FROM plan_snapshots WHERE id = ? AND event_id = ?`
	var (
		s        model.Snapshot
		planData []byte
		prev     sql.NullString
		reasons  []byte
	)
	err := r.db.QueryRowContext(ctx, q, snapshotID, eventID).Scan(
		&s.ID, &s.EventID, &s.Version, &planData, &prev, &reasons, &s.CreatedBy, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if prev.Valid {
		p := prev.String
		s.PrevID = &p
	}
	if err := json.Unmarshal(reasons, &s.Reasons); err != nil {
		return nil, fmt.Errorf("decode reasons of snapshot %s: %w", s.ID, err)
	}
	if s.Plan, err = decodePlan(planData); err != nil {
		return nil, fmt.Errorf("decode plan of snapshot %s: %w", s.ID, err)
	}
	return &s, nil
}

// InsertAuditEntries writes audit entries outside of a plan commit.  It
// is used by the out-of-band audit consumer; rows already present are
// skipped so redelivered messages are harmless.
func (r *PlanRepo) InsertAuditEntries(ctx context.Context, entries []model.AuditEntry) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return insertAudit(ctx, r.db, "INSERT IGNORE", entries)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertAudit writes entries in one multi-row statement.  Passing an empty
// slice has no effect and returns nil.
func insertAudit(ctx context.Context, ex execer, verb string, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query := verb + ` INTO audit_log (id, event_id, user_id, action_type, details, created_at) VALUES `
	args := make([]any, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		details, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		args = append(args, e.ID, e.EventID, e.UserID, e.ActionType, string(details), e.CreatedAt.UTC())
	}
	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

func insertSnapshotTx(ctx context.Context, tx *sql.Tx, s *model.Snapshot) error {
	body, err := json.Marshal(s.Plan)
	if err != nil {
		return err
	}
	reasons, err := json.Marshal(s.Reasons)
	if err != nil {
		return err
	}
	const q = `INSERT INTO plan_snapshots (id, event_id, version, plan_data, prev_id, reasons, created_by, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q, s.ID, s.EventID, s.Version, string(body), s.PrevID, string(reasons), s.CreatedBy, s.CreatedAt.UTC())
	return err
}

func decodePlan(b []byte) (*model.PlanDocument, error) {
	doc := model.NewPlanDocument()
	if len(b) > 0 {
		if err := json.Unmarshal(b, doc); err != nil {
			return nil, err
		}
	}
	doc.Normalize()
	return doc, nil
}
