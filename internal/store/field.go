// Package store implements ApeDB's on-disk chunk file: the 256-byte
// checksummed block format, the field record layout threaded through it,
// and the database header record. This is the engine's storage layer —
// the layer above (internal/avl) only ever mutates the three tree-header
// fields (balance and two child offsets) this package exposes offsets for.
package store

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/apedb/apedb/pkg/apetypes"
	apedberrors "github.com/apedb/apedb/pkg/errors"
)

const (
	// TreeHeaderSize is the byte width of the balance + left + right
	// pointer triple at the front of every field record.
	TreeHeaderSize = 1 + 8 + 8

	// FieldHeaderSize is TreeHeaderSize plus the one-byte type tag —
	// the fixed-size prefix before the length-prefixed id and value.
	FieldHeaderSize = TreeHeaderSize + 1

	// MaxByteStringLength is the largest id or encoded value the
	// one-byte length prefix can address.
	MaxByteStringLength = 255
)

// TreeHeader is the AVL bookkeeping embedded at the front of every field
// record: a signed balance factor and two child offsets. An offset of 0
// means "no child". This is the only part of a field record the AVL index
// is permitted to mutate after the record is first written.
type TreeHeader struct {
	Balance int8
	Left    uint64
	Right   uint64
}

// Field is a named, typed value together with the tree header that makes
// the record doubly-addressable: once as data, once as an AVL node.
type Field struct {
	Tree  TreeHeader
	ID    string
	Value apetypes.Value
}

// NewField constructs a field record with a zeroed tree header, as it
// exists before being spliced into the AVL index.
func NewField(id string, value apetypes.Value) Field {
	return Field{ID: id, Value: value}
}

// Encode serializes a field to its on-disk byte layout: 17-byte tree
// header, 1-byte type tag, length-prefixed id, then length-prefixed value
// (omitted entirely for booleans).
func (f Field) Encode() ([]byte, error) {
	if len(f.ID) == 0 {
		return nil, apedberrors.NewRequiredFieldError("id")
	}
	if len(f.ID) > MaxByteStringLength {
		return nil, apedberrors.NewValueTooLargeError("id", len(f.ID))
	}

	valuePayload, err := f.Value.Encode()
	if err != nil {
		return nil, err
	}
	if len(valuePayload) > MaxByteStringLength {
		return nil, apedberrors.NewValueTooLargeError("value", len(valuePayload))
	}

	size := FieldHeaderSize + 1 + len(f.ID)
	isBoolean := apetypes.Kind(f.Value.Tag()).IsBoolean()
	if !isBoolean {
		size += 1 + len(valuePayload)
	}

	buf := make([]byte, size)
	buf[0] = byte(f.Tree.Balance)
	binary.BigEndian.PutUint64(buf[1:9], f.Tree.Left)
	binary.BigEndian.PutUint64(buf[9:17], f.Tree.Right)
	buf[17] = f.Value.Tag()
	buf[18] = byte(len(f.ID))
	copy(buf[19:19+len(f.ID)], f.ID)

	if !isBoolean {
		off := 19 + len(f.ID)
		buf[off] = byte(len(valuePayload))
		copy(buf[off+1:], valuePayload)
	}

	return buf, nil
}

// DecodeField reconstructs a Field from a byte slice beginning at its
// tree header. It returns the field and the number of bytes consumed, or
// a ShortBuffer/InvalidUtf8 error if the bytes don't contain a complete,
// well-formed record.
func DecodeField(data []byte) (Field, int, error) {
	if len(data) < FieldHeaderSize+1 {
		return Field{}, 0, apedberrors.NewShortBufferError("field header", FieldHeaderSize+1, len(data))
	}

	tree := TreeHeader{
		Balance: int8(data[0]),
		Left:    binary.BigEndian.Uint64(data[1:9]),
		Right:   binary.BigEndian.Uint64(data[9:17]),
	}
	tag := data[17]
	idLen := int(data[18])

	if len(data) < 19+idLen {
		return Field{}, 0, apedberrors.NewShortBufferError("field id", 19+idLen, len(data))
	}
	id := string(data[19 : 19+idLen])

	isBoolean := apetypes.Kind(tag).IsBoolean()
	consumed := 19 + idLen

	var value apetypes.Value
	if isBoolean {
		v, err := apetypes.DecodeValue(tag, nil)
		if err != nil {
			return Field{}, 0, err
		}
		value = v
	} else {
		if len(data) < consumed+1 {
			return Field{}, 0, apedberrors.NewShortBufferError("field value length", consumed+1, len(data))
		}
		valLen := int(data[consumed])
		consumed++
		if len(data) < consumed+valLen {
			return Field{}, 0, apedberrors.NewShortBufferError("field value", consumed+valLen, len(data))
		}
		v, err := apetypes.DecodeValue(tag, data[consumed:consumed+valLen])
		if err != nil {
			return Field{}, 0, err
		}
		value = v
		consumed += valLen
	}

	return Field{Tree: tree, ID: id, Value: value}, consumed, nil
}

// EncodedSize returns the number of bytes f.Encode() would produce. It
// encodes the value payload to measure it but does not build the record.
func (f Field) EncodedSize() (int, error) {
	valuePayload, err := f.Value.Encode()
	if err != nil {
		return 0, err
	}
	size := FieldHeaderSize + 1 + len(f.ID)
	if !apetypes.Kind(f.Value.Tag()).IsBoolean() {
		size += 1 + len(valuePayload)
	}
	return size, nil
}

// Compare defines the in-memory total order over fields: id compared
// lexicographically byte-by-byte, then value compared variant-first and
// then by payload. Equality requires both components equal.
func Compare(a, b Field) int {
	if c := bytes.Compare([]byte(a.ID), []byte(b.ID)); c != 0 {
		return c
	}
	return apetypes.Compare(a.Value, b.Value)
}

// CompareAt is the on-file comparator: it reads two field records given
// their absolute byte offsets and walks id length / id bytes / value
// length / value bytes directly, without decoding a full Field. It must
// yield the same total order as Compare. It assumes neither record
// straddles a CONTINUED chunk boundary, which the chunk packer guarantees
// by never splitting a field record across chunks.
func CompareAt(r io.ReaderAt, offA, offB int64) (int, error) {
	ra, err := readFieldRaw(r, offA)
	if err != nil {
		return 0, err
	}
	rb, err := readFieldRaw(r, offB)
	if err != nil {
		return 0, err
	}

	if c := bytes.Compare(ra.id, rb.id); c != 0 {
		return c, nil
	}

	return compareRawValues(ra, rb), nil
}

type rawField struct {
	tag     byte
	id      []byte
	payload []byte
}

// readFieldRaw reads just enough of a field record at off to extract its
// id and value bytes, without constructing apetypes.Value instances.
func readFieldRaw(r io.ReaderAt, off int64) (rawField, error) {
	head := make([]byte, FieldHeaderSize+1)
	if _, err := r.ReadAt(head, off); err != nil {
		return rawField{}, apedberrors.NewFieldDecodeError(off, err)
	}
	tag := head[17]
	idLen := int(head[18])

	id := make([]byte, idLen)
	if idLen > 0 {
		if _, err := r.ReadAt(id, off+19); err != nil {
			return rawField{}, apedberrors.NewFieldDecodeError(off, err)
		}
	}

	if apetypes.Kind(tag).IsBoolean() {
		return rawField{tag: tag, id: id}, nil
	}

	lenByte := make([]byte, 1)
	if _, err := r.ReadAt(lenByte, off+19+int64(idLen)); err != nil {
		return rawField{}, apedberrors.NewFieldDecodeError(off, err)
	}
	valLen := int(lenByte[0])

	payload := make([]byte, valLen)
	if valLen > 0 {
		if _, err := r.ReadAt(payload, off+20+int64(idLen)); err != nil {
			return rawField{}, apedberrors.NewFieldDecodeError(off, err)
		}
	}

	return rawField{tag: tag, id: id, payload: payload}, nil
}

// compareRawValues mirrors apetypes.Compare's variant-first ordering
// directly on tag bytes and raw payloads, without decoding.
func compareRawValues(a, b rawField) int {
	ar, br := tagRank(a.tag), tagRank(b.tag)
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}
	switch apetypes.Kind(a.tag) {
	case apetypes.KindInteger:
		av := int64(binary.BigEndian.Uint64(a.payload))
		bv := int64(binary.BigEndian.Uint64(b.payload))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case apetypes.KindString:
		return bytes.Compare(a.payload, b.payload)
	default:
		return 0
	}
}

func tagRank(tag byte) int {
	switch apetypes.Kind(tag) {
	case apetypes.KindString:
		return 0
	case apetypes.KindInteger:
		return 1
	case apetypes.KindBooleanTrue:
		return 2
	case apetypes.KindBooleanFalse:
		return 3
	default:
		return -1
	}
}
