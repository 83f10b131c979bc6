package engine

import (
	"sort"
	"time"

	"github.com/iliyamo/seating-plan/internal/model"
	"github.com/iliyamo/seating-plan/internal/plan"
)

// Snapshot reasons.
const (
	ReasonRemoveTable      = "remove_table"
	ReasonCapacityDecrease = "capacity_decrease"
	ReasonMultiTableClear  = "multi_table_clear"
	ReasonRestore          = "restore_snapshot"
)

// ShouldSnapshot decides whether a batch is structurally significant.  It
// triggers when any op removes a table, decreases a table's capacity, or
// clears seats on more than one table.  facts must be the facts ApplyBatch
// returned for ops.  The reasons are sorted and unique.
func ShouldSnapshot(ops []plan.Op, facts []plan.Fact) (bool, []string) {
	set := map[string]bool{}
	for i, op := range ops {
		if op.Kind() == plan.KindRemoveTable {
			set[ReasonRemoveTable] = true
		}
		if i >= len(facts) {
			continue
		}
		if facts[i].CapacityDecreased {
			set[ReasonCapacityDecrease] = true
		}
		if len(facts[i].ClearedTables) > 1 {
			set[ReasonMultiTableClear] = true
		}
	}
	if len(set) == 0 {
		return false, nil
	}
	reasons := make([]string, 0, len(set))
	for r := range set {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return true, reasons
}

// newSnapshot captures ev's current document, linking it to the previous
// head of the chain.  The compare-and-swap in CommitPlan guarantees the
// head observed here is still the head when the snapshot is written.
func (e *Engine) newSnapshot(ev *model.Event, userID string, reasons []string, now time.Time) *model.Snapshot {
	var prev *string
	if ev.LatestSnapshotID != nil {
		p := *ev.LatestSnapshotID
		prev = &p
	}
	return &model.Snapshot{
		ID:        e.NewID(),
		EventID:   ev.ID,
		Version:   ev.AutosaveVersion,
		Plan:      ev.Plan.Clone(),
		PrevID:    prev,
		Reasons:   reasons,
		CreatedBy: userID,
		CreatedAt: now,
	}
}
