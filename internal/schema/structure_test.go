package schema

import (
	"testing"

	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apetypes"
	"github.com/stretchr/testify/assert"
)

func idStringStructure() *Structure {
	return New("doc", []Requirement{
		{FieldID: "id", ExpectedKind: apetypes.KindString},
	})
}

func TestMeetsAcceptsMatchingField(t *testing.T) {
	s := idStringStructure()
	fields := []store.Field{store.NewField("id", apetypes.NewString("Hello"))}
	assert.True(t, s.Meets(fields))
}

func TestMeetsRejectsWrongType(t *testing.T) {
	s := idStringStructure()
	fields := []store.Field{store.NewField("id", apetypes.NewInt(1))}
	assert.False(t, s.Meets(fields))
}

func TestMeetsRejectsUnknownField(t *testing.T) {
	s := idStringStructure()
	fields := []store.Field{store.NewField("unknown", apetypes.NewString("x"))}
	assert.False(t, s.Meets(fields))
}

func TestMeetsPermitsMissingRequiredField(t *testing.T) {
	s := New("doc", []Requirement{
		{FieldID: "id", ExpectedKind: apetypes.KindString},
		{FieldID: "extra", ExpectedKind: apetypes.KindInteger},
	})
	fields := []store.Field{store.NewField("id", apetypes.NewString("Hello"))}
	assert.True(t, s.Meets(fields))
}

func TestMeetsChecksDuplicatesIndependently(t *testing.T) {
	s := idStringStructure()
	fields := []store.Field{
		store.NewField("id", apetypes.NewString("a")),
		store.NewField("id", apetypes.NewInt(1)),
	}
	assert.False(t, s.Meets(fields))
}

func TestBooleanRequirementMatchesEitherTag(t *testing.T) {
	s := New("flags", []Requirement{
		{FieldID: "active", ExpectedKind: apetypes.KindBooleanTrue},
	})
	assert.True(t, s.Meets([]store.Field{store.NewField("active", apetypes.NewBool(true))}))
	assert.True(t, s.Meets([]store.Field{store.NewField("active", apetypes.NewBool(false))}))
}
