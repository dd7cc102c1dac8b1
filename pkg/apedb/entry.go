// Package apedb is ApeDB's public surface: Entry, the record callers
// submit, and List, the schema-guarded collection that admits, serializes,
// and indexes them.
package apedb

import "github.com/apedb/apedb/internal/store"

// Entry is one logical record: a caller-assigned identity and the ordered
// sequence of fields that make it up. The identity is never serialized
// into the chunk file itself — only Fields is — so UUID issuance and
// caching remain the caller's concern, matching the database's scope of
// owning storage and indexing, not identifier allocation.
type Entry struct {
	UUID   [16]byte
	Fields []store.Field
}

// NewEntry builds an Entry from a caller-supplied identity and field list.
func NewEntry(uuid [16]byte, fields []store.Field) Entry {
	return Entry{UUID: uuid, Fields: fields}
}

// Field returns the first field with the given id, or false if none of
// the entry's fields carry it.
func (e Entry) Field(id string) (store.Field, bool) {
	for _, f := range e.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return store.Field{}, false
}
