// Package schema implements the Structure/Requirement admission check
// that guards which fields a List will accept into an entry.
package schema

import (
	"sort"

	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apetypes"
)

// Requirement declares that a field with FieldID, if present, must carry
// a value of ExpectedKind. Value contents are never checked, only the
// variant tag.
type Requirement struct {
	FieldID      string
	ExpectedKind apetypes.Kind
}

// Meets reports whether f satisfies this requirement: its id matches and
// its value's tag matches ExpectedKind. Booleans match either tag since
// both 'B' and 'b' carry the same declared kind.
func (r Requirement) Meets(f store.Field) bool {
	if f.ID != r.FieldID {
		return false
	}
	if r.ExpectedKind.IsBoolean() {
		return apetypes.Kind(f.Value.Tag()).IsBoolean()
	}
	return apetypes.Kind(f.Value.Tag()) == r.ExpectedKind
}

// Structure is a named, sorted set of Requirements — a schema a List
// checks every admitted entry's fields against.
type Structure struct {
	ID           string
	requirements []Requirement
}

// New constructs a Structure, sorting requirements by field id so Meets
// can binary-search them. The requirement list is treated immutable
// after construction.
func New(id string, requirements []Requirement) *Structure {
	sorted := make([]Requirement, len(requirements))
	copy(sorted, requirements)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FieldID < sorted[j].FieldID
	})
	return &Structure{ID: id, requirements: sorted}
}

// Requirements returns the structure's sorted requirement list.
func (s *Structure) Requirements() []Requirement {
	return s.requirements
}

// Meets checks fields against the structure one-sided: a requirement with
// no corresponding supplied field is not flagged (the admission check
// never penalizes a field the entry simply didn't include), but every
// supplied field must have a matching requirement and satisfy it —
// fields with no matching requirement are rejected. Duplicate field ids
// in fields are each checked independently.
func (s *Structure) Meets(fields []store.Field) bool {
	for _, f := range fields {
		i := sort.Search(len(s.requirements), func(i int) bool {
			return s.requirements[i].FieldID >= f.ID
		})
		if i >= len(s.requirements) || s.requirements[i].FieldID != f.ID {
			return false
		}
		if !s.requirements[i].Meets(f) {
			return false
		}
	}
	return true
}
