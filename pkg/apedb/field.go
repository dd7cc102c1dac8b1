package apedb

import (
	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apetypes"
)

// Field is a re-export of internal/store.Field: a typed, identified value
// ready to be handed to an Entry. Callers outside this module build Fields
// through NewField rather than reaching into internal/store directly.
type Field = store.Field

// NewField builds a Field with the given id and value.
func NewField(id string, value apetypes.Value) Field {
	return store.NewField(id, value)
}
