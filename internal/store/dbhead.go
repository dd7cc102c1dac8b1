package store

import (
	"encoding/binary"

	"github.com/apedb/apedb/pkg/apetypes"
	apedberrors "github.com/apedb/apedb/pkg/errors"
)

// Default metadata values a freshly created database is stamped with.
const (
	DefaultVersion      = 0
	DefaultUUIDCacheSize = 1024
	DefaultUnixPerm      = 0o777
)

// Header is the database-metadata record written into the first chunk(s)
// of a newly created file: name, version, the configured UUID cache size,
// permission bits, owner, and the sanity pair the source format uses to
// flag a database that failed a consistency check.
type Header struct {
	Name          string
	Version       int64
	UUIDCacheSize int64
	Perm          int64
	Owner         string
	Sane          bool
	Insane        bool
}

// NewHeader builds a Header with the default version, UUID cache size,
// and permission bits, for the given database name and owner.
func NewHeader(name, owner string) Header {
	return Header{
		Name:          name,
		Version:       DefaultVersion,
		UUIDCacheSize: DefaultUUIDCacheSize,
		Perm:          DefaultUnixPerm,
		Owner:         owner,
		Sane:          true,
		Insane:        false,
	}
}

// Fields returns the Header's data as the ordered field list the DBHEAD
// chunk(s) encode, using the same field codec and CRC discipline as
// any other chunk.
func (h Header) Fields() []Field {
	return []Field{
		NewField("name", apetypes.NewString(h.Name)),
		NewField("ver", apetypes.NewInt(h.Version)),
		NewField("uuid_cache_size", apetypes.NewInt(h.UUIDCacheSize)),
		NewField("perm", apetypes.NewInt(h.Perm)),
		NewField("owner", apetypes.NewString(h.Owner)),
		NewField("sane", apetypes.NewBool(h.Sane)),
		NewField("insane", apetypes.NewBool(h.Insane)),
	}
}

// WriteHeader writes h as the database's DBHEAD record. The fields are
// packed and written first with no flags set; UNDER_CONSTRUCTION is then
// set on the first chunk and cleared again, so the chunk ends up with the
// flag clear and no chunk carries it while the fields are being written.
func WriteHeader(cf *ChunkFile, h Header) error {
	points, err := cf.WriteHeaderChunk(h.Fields())
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	firstChunk := points[0] / ChunkSize
	if err := cf.SetChunkFlag(firstChunk, FlagUnderConstruction, true); err != nil {
		return err
	}
	return cf.SetChunkFlag(firstChunk, FlagUnderConstruction, false)
}

// ReadHeader decodes the DBHEAD record back into a Header, starting at
// chunk 0 and following FlagContinued the same way a reader of a
// multi-chunk entry stream would: long names/owners that push the
// encoded field stream past stub capacity overflow into one or more
// continued chunks before terminating in a stub, mirroring WriteHeader's
// use of the same addFieldStream packer AddEntryChunk uses. A continued
// chunk carries no length of its own, so decoding within one runs until
// either Header's fixed field count is reached or a decode fails against
// trailing zero-padding (safe to treat as end-of-data there, since the
// chunk's CRC already verified above); only the terminating stub chunk's
// explicit data_len draws an exact boundary.
func ReadHeader(cf *ChunkFile) (Header, error) {
	h := Header{}
	fieldsWant := len(h.Fields())
	fieldsSeen := 0
	chunkIndex := int64(0)

	for fieldsSeen < fieldsWant {
		rawChunk, err := cf.ReadChunk(chunkIndex)
		if err != nil {
			return Header{}, err
		}
		chunk := rawChunk.Bytes()
		if !verifyCRC24(chunk[:]) {
			crcErr := apedberrors.NewChunkCRCError(chunkIndex*ChunkSize, digest24(chunk[:]))
			if cf.log != nil {
				cf.log.Errorw("DBHEAD chunk failed CRC-24", "error", crcErr, "stack", crcErr.StackTrace())
			}
			return Header{}, crcErr
		}
		if rawChunk.Variant() != VariantDBHead {
			variantErr := apedberrors.NewCorruptionError(
				nil, apedberrors.ErrorCodeCorruption, "chunk is not a DBHEAD chunk",
			).WithChunkOffset(chunkIndex * ChunkSize)
			if cf.log != nil {
				cf.log.Errorw("DBHEAD read found wrong chunk variant", "error", variantErr, "stack", variantErr.StackTrace())
			}
			return Header{}, variantErr
		}

		continued := rawChunk.HasFlag(FlagContinued)

		var data []byte
		var nextChunk int64
		if continued {
			nextOffset := binary.BigEndian.Uint64(chunk[1:9])
			nextChunk = int64(nextOffset) / ChunkSize
			data = chunk[9:chunkBodySize]
		} else {
			dataLen := int(chunk[1])
			data = chunk[2 : 2+dataLen]
		}

		off := 0
		for off < len(data) && fieldsSeen < fieldsWant {
			f, n, err := DecodeField(data[off:])
			if err != nil {
				// A continued chunk carries no length of its own, only
				// zero-padding after its last real field; since the whole
				// chunk already passed its CRC check above, a decode
				// failure here can only be that padding, never corruption,
				// so it just ends this chunk's share of the stream.
				if continued {
					break
				}
				return Header{}, err
			}
			off += n
			fieldsSeen++

			switch f.ID {
			case "name":
				h.Name = f.Value.Str
			case "ver":
				h.Version = f.Value.Int
			case "uuid_cache_size":
				h.UUIDCacheSize = f.Value.Int
			case "perm":
				h.Perm = f.Value.Int
			case "owner":
				h.Owner = f.Value.Str
			case "sane":
				h.Sane = f.Value.Bool
			case "insane":
				h.Insane = f.Value.Bool
			}
		}

		if !continued {
			break
		}
		chunkIndex = nextChunk
	}

	return h, nil
}
