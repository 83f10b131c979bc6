package plan

import "github.com/iliyamo/seating-plan/internal/model"

// ApplyBatch validates and applies ops in order, each against the state
// left by the previous ones, then runs the integrity pass on the result.
// On any failure doc is returned untouched together with the error; the
// caller must not persist anything.
func ApplyBatch(doc *model.PlanDocument, ops []Op) (*model.PlanDocument, []Fact, *Error) {
	cur := doc
	facts := make([]Fact, 0, len(ops))
	for i, op := range ops {
		if perr := Validate(cur, op); perr != nil {
			return doc, nil, perr.AtOp(i)
		}
		var f Fact
		cur, f = Apply(cur, op)
		facts = append(facts, f)
	}
	if vs := CheckIntegrity(cur); len(vs) > 0 {
		return doc, nil, IntegrityError(vs)
	}
	return cur, facts, nil
}
