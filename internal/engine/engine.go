// Package engine is the plan mutation engine: it runs every plan change
// through one lifecycle (preconditions, sequential apply, integrity,
// compare-and-swap persist, audit, snapshot) regardless of whether the
// change came from the batch endpoint or a single-operation endpoint.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/metrics"
	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
	"github.com/iliyamo/seating-plan/internal/repository"
)

// Store is the persistence collaborator: one read with version and one
// conditional write per request, plus lock and snapshot access.
type Store interface {
	CreateEvent(ctx context.Context, id, ownerID string) (*model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	CommitPlan(ctx context.Context, c repository.Commit) error
	SetLock(ctx context.Context, eventID, holder string, expiresAt, now time.Time) (bool, error)
	ClearLock(ctx context.Context, eventID string) error
	ListSnapshots(ctx context.Context, eventID string) ([]model.Snapshot, error)
	GetSnapshot(ctx context.Context, eventID, snapshotID string) (*model.Snapshot, error)
}

// EditorPolicy is the external authorization fact deciding whether a
// non-owner may take the editor lock or browse history.  The engine
// never consults it for plan mutations: those require ownership or the
// lock itself.
type EditorPolicy interface {
	CanEdit(ctx context.Context, ev *model.Event, userID string) bool
}

// Config holds engine tunables.
type Config struct {
	MaxOps            int           // per-request operation cap, at most plan.MaxBatchOps
	LockTTL           time.Duration // advisory lock lifetime granted by AcquireLock
	AuditRetries      int           // hand-off attempts before giving up
	AuditRetryBackoff time.Duration // first retry delay, doubled per attempt
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		MaxOps:            plan.MaxBatchOps,
		LockTTL:           2 * time.Minute,
		AuditRetries:      5,
		AuditRetryBackoff: time.Second,
	}
}

// Engine runs plan mutations.  Store is required; every other collaborator
// is optional.
type Engine struct {
	Store    Store
	Audit    AuditSink      // receives audit entries when Store cannot write them atomically
	Notifier CommitNotifier // told about every committed request; optional
	Editors  EditorPolicy   // nil means owner only
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
	Config   Config
	Now      func() time.Time
	NewID    func() string

	wg sync.WaitGroup
}

// New constructs an Engine and panics if store is nil.  Zero config
// fields take their defaults.
func New(store Store, cfg Config) *Engine {
	if store == nil {
		panic("nil store passed to engine.New")
	}
	def := DefaultConfig()
	if cfg.MaxOps <= 0 || cfg.MaxOps > plan.MaxBatchOps {
		cfg.MaxOps = def.MaxOps
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.AuditRetries <= 0 {
		cfg.AuditRetries = def.AuditRetries
	}
	if cfg.AuditRetryBackoff <= 0 {
		cfg.AuditRetryBackoff = def.AuditRetryBackoff
	}
	return &Engine{
		Store:  store,
		Log:    logrus.StandardLogger(),
		Config: cfg,
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  func() string { return uuid.NewString() },
	}
}

// BatchRequest is one mutation request.  Version is the autosave_version
// the caller last observed.
type BatchRequest struct {
	EventID string
	UserID  string
	Version int64
	Ops     []plan.Op
}

// Result describes a committed request.
type Result struct {
	EventID         string
	AutosaveVersion int64
	Plan            *model.PlanDocument
	AppliedOps      int
	Facts           []plan.Fact
	Snapshot        *model.Snapshot
}

// Execute validates and applies req.Ops atomically.  On success the stored
// version is req.Version+1; on any failure nothing is persisted and the
// returned error is a *plan.Error.
func (e *Engine) Execute(ctx context.Context, req BatchRequest) (*Result, error) {
	if len(req.Ops) == 0 {
		return nil, plan.Errorf(plan.CodeValidation, "ops must contain at least one operation")
	}
	if len(req.Ops) > e.Config.MaxOps {
		return nil, plan.NewError(plan.CodeValidation, "too many operations",
			map[string]any{"max_ops": e.Config.MaxOps, "provided": len(req.Ops)})
	}
	return e.run(ctx, req.EventID, req.UserID, req.Version, len(req.Ops),
		func(_ context.Context, doc *model.PlanDocument) (mutation, error) {
			next, facts, perr := plan.ApplyBatch(doc, req.Ops)
			if perr != nil {
				return mutation{}, perr
			}
			_, reasons := ShouldSnapshot(req.Ops, facts)
			return mutation{plan: next, facts: facts, reasons: reasons}, nil
		})
}

// Single runs one operation through the same lifecycle as Execute.  It
// backs the single-operation endpoints.
func (e *Engine) Single(ctx context.Context, eventID, userID string, version int64, op plan.Op) (*Result, error) {
	return e.Execute(ctx, BatchRequest{EventID: eventID, UserID: userID, Version: version, Ops: []plan.Op{op}})
}

// CreateEvent creates an event owned by ownerID with an empty plan.
func (e *Engine) CreateEvent(ctx context.Context, eventID, ownerID string) (*model.Event, error) {
	if eventID == "" {
		eventID = e.NewID()
	}
	ev, err := e.Store.CreateEvent(ctx, eventID, ownerID)
	if err != nil {
		if err == repository.ErrEventExists {
			return nil, plan.NewError(plan.CodeDuplicateID, "event already exists", map[string]any{"event_id": eventID})
		}
		return nil, e.internal(err, logrus.Fields{"event_id": eventID})
	}
	return ev, nil
}

// GetPlan returns the event with its current document.  The owner, the
// active lock holder and editors allowed by the policy may read it.
func (e *Engine) GetPlan(ctx context.Context, eventID, userID string) (*model.Event, error) {
	ev, err := e.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.canRead(ctx, ev, userID) {
		return nil, forbidden(eventID)
	}
	return ev, nil
}

// Wait blocks until every pending audit hand-off finished.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) canEdit(ctx context.Context, ev *model.Event, userID string) bool {
	if ev.OwnerID == userID {
		return true
	}
	return e.Editors != nil && e.Editors.CanEdit(ctx, ev, userID)
}

func (e *Engine) canRead(ctx context.Context, ev *model.Event, userID string) bool {
	if holder, ok := ev.ActiveLockHolder(e.Now()); ok && holder == userID {
		return true
	}
	return e.canEdit(ctx, ev, userID)
}
