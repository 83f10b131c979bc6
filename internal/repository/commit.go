package repository

import "github.com/iliyamo/seating-plan/internal/model"

// Commit is one conditional replacement of an event's plan document.
// The write only happens when the stored autosave_version still equals
// ExpectedVersion; on success the version becomes ExpectedVersion+1.
//
// Fields:
//  EventID         – event whose document is replaced.
//  ExpectedVersion – version observed when the document was read.
//  Plan            – the next document, written wholesale.
//  Audit           – entries written in the same transaction; stores that
//                    cannot do so report AuditsAtomically() == false and
//                    receive nil here.
//  Snapshot        – optional pre-mutation snapshot; when set it becomes
//                    the event's latest snapshot in the same write.
type Commit struct {
	EventID         string
	ExpectedVersion int64
	Plan            *model.PlanDocument
	Audit           []model.AuditEntry
	Snapshot        *model.Snapshot
}
