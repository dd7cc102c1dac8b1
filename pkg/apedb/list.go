package apedb

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/apedb/apedb/internal/avl"
	"github.com/apedb/apedb/internal/schema"
	"github.com/apedb/apedb/internal/store"
	apedberrors "github.com/apedb/apedb/pkg/errors"
)

// ErrListClosed is returned when attempting to perform operations on a
// closed List.
var ErrListClosed = errors.New("operation failed: cannot access closed list")

// List owns one ChunkFile, one Structure, and the AVL index threaded
// through that file's field records. It is the unit of schema
// enforcement: every entry admitted through it is checked against the
// same Structure before any bytes are written.
type List struct {
	structure  *schema.Structure
	file       *store.ChunkFile
	avl        *avl.Index
	entryCount uint64
	closed     atomic.Bool
	log        *zap.SugaredLogger
}

// Config holds the dependencies a List is built from.
type Config struct {
	Structure *schema.Structure
	File      *store.ChunkFile
	Laze      uint8
	Logger    *zap.SugaredLogger
}

// New constructs a List over an already-open ChunkFile, with an empty AVL
// index (head 0) — the head is claimed by the first entry's last field,
// per AddEntry's head-assignment rule.
func New(config *Config) *List {
	index := avl.New(config.File, 0, config.Laze, config.Logger)
	return &List{
		structure: config.Structure,
		file:      config.File,
		avl:       index,
		log:       config.Logger,
	}
}

// EntryCount returns the number of entries successfully admitted so far.
func (l *List) EntryCount() uint64 {
	return l.entryCount
}

// Head returns the AVL index's current root offset, 0 if no entry has
// been indexed yet.
func (l *List) Head() uint64 {
	return l.avl.Head()
}

// Search looks up a field by value in the AVL index, returning the
// absolute file offset of a matching field record. The key need not
// have been written to the file itself — only the id/value pair it
// carries is compared against what's already indexed.
func (l *List) Search(key store.Field) (uint64, bool, error) {
	return l.avl.SearchField(key)
}

// AddEntry admits, serializes, and indexes entry. It rejects entries that
// violate the list's structure or carry no fields before anything is
// written; once accepted, all of the entry's field chunks are appended
// contiguously, then each field is spliced into the AVL index in the
// order it was supplied.
func (l *List) AddEntry(entry Entry) error {
	if l.closed.Load() {
		return ErrListClosed
	}

	if !l.structure.Meets(entry.Fields) {
		if l.log != nil {
			l.log.Errorw("entry rejected by structure", "structureId", l.structure.ID)
		}
		return apedberrors.NewSchemaViolationError(l.structure.ID, "")
	}
	if len(entry.Fields) == 0 {
		if l.log != nil {
			l.log.Errorw("entry rejected: no fields")
		}
		return apedberrors.NewEmptyEntryError()
	}

	points, err := l.file.AddEntryChunk(entry.Fields)
	if err != nil {
		return err
	}

	// When the tree is still empty, the last-written field of this entry
	// becomes the root directly rather than being walked in like any
	// other insert; avl.Insert already special-cases an empty tree as a
	// plain assignment, so routing the head point through it here does
	// the same thing the source engine's "pop and assign" did.
	if l.avl.Head() == 0 && len(points) > 0 {
		last := len(points) - 1
		if err := l.avl.Insert(uint64(points[last])); err != nil {
			return err
		}
		points = points[:last]
	}

	for _, p := range points {
		if err := l.avl.Insert(uint64(p)); err != nil {
			return err
		}
	}

	l.entryCount++
	if l.log != nil {
		l.log.Debugw("entry added", "entryCount", l.entryCount, "fields", len(entry.Fields))
	}
	return nil
}

// Close releases the List's ChunkFile. Further calls to AddEntry fail
// with ErrListClosed.
func (l *List) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrListClosed
	}
	return l.file.Close()
}
