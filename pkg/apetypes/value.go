// Package apetypes defines ApeDB's tagged-union value type and its wire
// encoding. A Value is one of Integer, String, or Boolean; the concrete
// encoding rules mirror the on-disk field layout the store package builds
// records around.
package apetypes

import (
	"encoding/binary"
	"unicode/utf8"

	apedberrors "github.com/apedb/apedb/pkg/errors"
)

// Kind identifies which variant of Value is populated, and doubles as the
// on-disk type tag byte written into a field record.
type Kind byte

const (
	// KindString tags a UTF-8 string value. On disk: 'S'.
	KindString Kind = 'S'
	// KindInteger tags a 64-bit signed integer value. On disk: 'I'.
	KindInteger Kind = 'I'
	// KindBooleanTrue tags a true boolean. On disk: 'B'.
	KindBooleanTrue Kind = 'B'
	// KindBooleanFalse tags a false boolean. On disk: 'b'.
	KindBooleanFalse Kind = 'b'
)

// rank orders variants for cross-kind comparison: S < I < B < b.
func (k Kind) rank() int {
	switch k {
	case KindString:
		return 0
	case KindInteger:
		return 1
	case KindBooleanTrue:
		return 2
	case KindBooleanFalse:
		return 3
	default:
		return -1
	}
}

// IsBoolean reports whether the kind is one of the two boolean tags, which
// carry no payload bytes on disk.
func (k Kind) IsBoolean() bool {
	return k == KindBooleanTrue || k == KindBooleanFalse
}

// Value is a tagged union over the three variants ApeDB can persist. Only
// one of the fields identified by Kind is meaningful at a time. A Value
// with Present == false represents an absent value, used only as a schema
// template (Requirement); persisting an absent Value is undefined.
type Value struct {
	Kind    Kind
	Present bool
	Int     int64
	Str     string
	Bool    bool
}

// NewInt constructs a present Integer value.
func NewInt(v int64) Value {
	return Value{Kind: KindInteger, Present: true, Int: v}
}

// NewString constructs a present String value.
func NewString(v string) Value {
	return Value{Kind: KindString, Present: true, Str: v}
}

// NewBool constructs a present Boolean value.
func NewBool(v bool) Value {
	k := KindBooleanFalse
	if v {
		k = KindBooleanTrue
	}
	return Value{Kind: k, Present: true, Bool: v}
}

// AbsentInt, AbsentString and AbsentBool construct the absent template
// values used when declaring a Requirement's expected kind.
func AbsentInt() Value    { return Value{Kind: KindInteger} }
func AbsentString() Value { return Value{Kind: KindString} }
func AbsentBool() Value   { return Value{Kind: KindBooleanTrue} }

// tag returns the on-disk type tag for this value. For booleans this
// depends on the actual truth value, not just the declared Kind.
func (v Value) tag() Kind {
	if v.Kind == KindBooleanTrue || v.Kind == KindBooleanFalse {
		if v.Bool {
			return KindBooleanTrue
		}
		return KindBooleanFalse
	}
	return v.Kind
}

// Tag returns the on-disk type tag byte for this value.
func (v Value) Tag() byte {
	return byte(v.tag())
}

// Encode serializes the value's payload bytes only — the caller writes the
// tag byte separately as part of the field record. Booleans encode to a
// zero-length payload; their truth lives entirely in the tag.
func (v Value) Encode() ([]byte, error) {
	switch v.tag() {
	case KindInteger:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.Int))
		return buf, nil
	case KindString:
		if !utf8.ValidString(v.Str) {
			return nil, apedberrors.NewInvalidUTF8Error("value")
		}
		return []byte(v.Str), nil
	case KindBooleanTrue, KindBooleanFalse:
		return nil, nil
	default:
		return nil, apedberrors.NewValidationError(nil, apedberrors.ErrorCodeInvalidInput, "unknown value kind")
	}
}

// DecodeValue reconstructs a Value from its type tag and payload bytes.
// Integer payloads shorter than 8 bytes fail with ShortBuffer; string
// payloads that are not valid UTF-8 fail with InvalidUtf8.
func DecodeValue(tag byte, payload []byte) (Value, error) {
	switch Kind(tag) {
	case KindInteger:
		if len(payload) < 8 {
			return Value{}, apedberrors.NewShortBufferError("value", 8, len(payload))
		}
		return NewInt(int64(binary.BigEndian.Uint64(payload[:8]))), nil
	case KindString:
		if !utf8.Valid(payload) {
			return Value{}, apedberrors.NewInvalidUTF8Error("value")
		}
		return NewString(string(payload)), nil
	case KindBooleanTrue:
		return NewBool(true), nil
	case KindBooleanFalse:
		return NewBool(false), nil
	default:
		return Value{}, apedberrors.NewValidationError(nil, apedberrors.ErrorCodeInvalidInput, "unknown type tag").
			WithDetail("tag", tag)
	}
}

// Compare defines the total order over values: variant-first by tag
// ordering S < I < B < b, then by payload (integers numerically, strings
// byte-by-byte, booleans are equal within their own tag since the tag
// alone determines truth). Cross-variant comparison between two Values
// whose declared Kind differs in ways rank() can't order is undefined and
// must not be requested by callers outside this package.
func Compare(a, b Value) int {
	ar, br := a.tag().rank(), b.tag().rank()
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}
	switch a.tag() {
	case KindInteger:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		// Both booleans with the same tag carry the same truth value.
		return 0
	}
}
