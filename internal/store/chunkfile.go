package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/apedb/apedb/pkg/filesys"

	apedberrors "github.com/apedb/apedb/pkg/errors"
	"go.uber.org/zap"
)

// ChunkFile is the append-only, 256-byte-chunked file that backs an ApeDB
// database. It knows how to admit a stream of encoded fields, pack them
// into stub and continued chunks without ever splitting a field record
// across a chunk boundary, and how to read back or verify any chunk by
// index. The AVL index mutates tree pointers through ChunkFile's
// read-modify-write helpers rather than touching the file directly.
type ChunkFile struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
	log  *zap.SugaredLogger
}

// Create opens a brand-new database file at path, failing with FileExists
// if anything is already there. This mirrors the source engine's refusal
// to ever overwrite an existing database.
func Create(path string, perm os.FileMode, log *zap.SugaredLogger) (*ChunkFile, error) {
	log.Infow("creating database file", "path", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := filesys.CreateDir(dir, 0755, true); err != nil {
			return nil, apedberrors.NewStorageError(
				err, apedberrors.ErrorCodeIO, "failed to create database directory",
			).WithPath(dir)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, perm)
	if err != nil {
		if os.IsExist(err) {
			return nil, apedberrors.NewStorageError(
				err, apedberrors.ErrorCodeFileExists, "database file already exists",
			).WithPath(path)
		}
		return nil, apedberrors.ClassifyFileOpenError(err, path)
	}

	log.Infow("database file created", "path", path)
	return &ChunkFile{file: file, path: path, log: log}, nil
}

// Open opens an existing database file for read-write access.
func Open(path string, log *zap.SugaredLogger) (*ChunkFile, error) {
	exists, err := filesys.Exists(path)
	if err != nil {
		return nil, apedberrors.NewStorageError(err, apedberrors.ErrorCodeIO, "failed to stat database file").
			WithPath(path)
	}
	if !exists {
		return nil, apedberrors.NewStorageError(
			nil, apedberrors.ErrorCodeIO, "database file does not exist",
		).WithPath(path)
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, apedberrors.ClassifyFileOpenError(err, path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, apedberrors.NewStorageError(err, apedberrors.ErrorCodeIO, "failed to stat database file").
			WithPath(path)
	}

	log.Infow("database file opened", "path", path, "size", info.Size())
	return &ChunkFile{file: file, path: path, size: info.Size(), log: log}, nil
}

// Close releases the underlying file handle.
func (cf *ChunkFile) Close() error {
	return cf.file.Close()
}

// Size returns the current file length in bytes; always a multiple of ChunkSize.
func (cf *ChunkFile) Size() int64 {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.size
}

// ChunkCount returns the number of chunks currently in the file.
func (cf *ChunkFile) ChunkCount() int64 {
	return cf.Size() / ChunkSize
}

// ReaderAt exposes the underlying file for the on-file comparator, which
// needs random-access reads but none of ChunkFile's packing logic.
func (cf *ChunkFile) ReaderAt() io.ReaderAt {
	return cf.file
}

// AddEntryChunk serializes fields as an entry's field stream and packs it
// into one or more ENTRY chunks, returning the absolute file offset
// ("insertion point") of each field's record in input order.
func (cf *ChunkFile) AddEntryChunk(fields []Field) ([]int64, error) {
	return cf.addFieldStream(VariantEntry, fields)
}

// WriteHeaderChunk packs fields into one or more DBHEAD chunks, the same
// way AddEntryChunk packs an entry. It is used once, at database creation.
func (cf *ChunkFile) WriteHeaderChunk(fields []Field) ([]int64, error) {
	return cf.addFieldStream(VariantDBHead, fields)
}

// addFieldStream is the shared packer behind AddEntryChunk and
// WriteHeaderChunk. It never splits a field record across a chunk
// boundary: fields are greedily packed into continued chunks (capacity
// ContinuedDataSize) until the remainder fits a single stub chunk
// (capacity StubDataSize), which is always the last chunk written.
func (cf *ChunkFile) addFieldStream(variant Variant, fields []Field) ([]int64, error) {
	encoded := make([][]byte, len(fields))
	for i, f := range fields {
		b, err := f.Encode()
		if err != nil {
			return nil, err
		}
		if len(b) > StubDataSize {
			panic(fmt.Sprintf(
				"field record of %d bytes exceeds the maximum chunk capacity of %d bytes",
				len(b), StubDataSize,
			))
		}
		encoded[i] = b
	}

	groups := packFields(encoded)
	if len(groups) == 0 {
		return nil, nil
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	base := cf.size
	insertionPoints := make([]int64, 0, len(fields))

	for gi, group := range groups {
		isLast := gi == len(groups)-1
		chunkOffset := base + int64(gi)*ChunkSize

		var body [chunkBodySize]byte
		var dataStart int
		if isLast {
			body[0] = header(variant, 0)
			dataStart = 2
		} else {
			body[0] = header(variant, FlagContinued)
			nextOffset := base + int64(gi+1)*ChunkSize
			binary.BigEndian.PutUint64(body[1:9], uint64(nextOffset))
			dataStart = 9
		}

		pos := dataStart
		for _, idx := range group {
			insertionPoints = append(insertionPoints, chunkOffset+int64(pos))
			copy(body[pos:], encoded[idx])
			pos += len(encoded[idx])
		}

		if isLast {
			body[1] = byte(pos - dataStart)
		}

		if err := cf.writeChunkBody(chunkOffset, body[:]); err != nil {
			return nil, err
		}
	}

	cf.size = base + int64(len(groups))*ChunkSize
	return insertionPoints, nil
}

// packFields groups field indices into chunks, respecting the rule that a
// field record is never split across a chunk boundary. It panics if a
// single field is too large to fit a continued chunk's capacity while
// other fields still follow it in the stream — the format has no way to
// represent that case, since only a stub chunk (which terminates the
// stream) has room for a field that large.
func packFields(encoded [][]byte) [][]int {
	n := len(encoded)
	if n == 0 {
		return nil
	}

	var groups [][]int
	idx := 0
	for idx < n {
		remaining := 0
		for i := idx; i < n; i++ {
			remaining += len(encoded[i])
		}

		if remaining <= StubDataSize {
			group := make([]int, 0, n-idx)
			for i := idx; i < n; i++ {
				group = append(group, i)
			}
			groups = append(groups, group)
			idx = n
			continue
		}

		group := make([]int, 0, n-idx)
		used := 0
		for idx < n {
			fl := len(encoded[idx])
			if used+fl > ContinuedDataSize {
				break
			}
			group = append(group, idx)
			used += fl
			idx++
		}

		if len(group) == 0 {
			panic(fmt.Sprintf(
				"field record of %d bytes does not fit a continued chunk (capacity %d) while more fields follow it",
				len(encoded[idx]), ContinuedDataSize,
			))
		}

		groups = append(groups, group)
	}

	return groups
}

// writeChunkBody finishes a chunk's body (header + variant-specific data,
// already zero-padded to chunkBodySize) by computing and appending its
// CRC-24, then writes the full 256 bytes at chunkOffset. Callers hold cf.mu.
func (cf *ChunkFile) writeChunkBody(chunkOffset int64, body []byte) error {
	crc := digest24(body)
	trailer := encodeCRC24(crc)

	full := make([]byte, ChunkSize)
	copy(full, body)
	copy(full[chunkBodySize:], trailer[:])

	if _, err := cf.file.WriteAt(full, chunkOffset); err != nil {
		return apedberrors.ClassifyWriteError(err, cf.path, chunkOffset)
	}
	return nil
}

// ReadChunk returns the chunk at the given index.
func (cf *ChunkFile) ReadChunk(index int64) (Chunk, error) {
	var buf [ChunkSize]byte
	offset := index * ChunkSize
	if _, err := cf.file.ReadAt(buf[:], offset); err != nil {
		return Chunk{}, apedberrors.NewStorageError(err, apedberrors.ErrorCodeIO, "failed to read chunk").
			WithPath(cf.path).WithOffset(offset)
	}
	return Chunk{bytes: buf}, nil
}

// AllChunkOffsets returns the absolute byte offset of every chunk
// currently in the file, in order, so callers like pkg/apedb and
// diagnostics code can walk the whole file without recomputing
// ChunkSize arithmetic themselves.
func (cf *ChunkFile) AllChunkOffsets() []int64 {
	count := cf.ChunkCount()
	offsets := make([]int64, count)
	for i := int64(0); i < count; i++ {
		offsets[i] = i * ChunkSize
	}
	return offsets
}

// VerifyChunk reports whether the chunk at the given index satisfies
// crc24(chunk) == 0. A failing chunk must be treated by readers as absent.
func (cf *ChunkFile) VerifyChunk(index int64) (bool, error) {
	chunk, err := cf.ReadChunk(index)
	if err != nil {
		return false, err
	}
	bytes := chunk.Bytes()
	return verifyCRC24(bytes[:]), nil
}

// ReadField decodes the full field record beginning at the absolute file
// offset off.
func (cf *ChunkFile) ReadField(off int64) (Field, error) {
	buf := make([]byte, FieldHeaderSize+1+MaxByteStringLength+1+MaxByteStringLength)
	n, err := cf.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return Field{}, apedberrors.NewFieldDecodeError(off, err)
	}

	f, _, derr := DecodeField(buf[:n])
	if derr != nil {
		return Field{}, derr
	}
	return f, nil
}

// ReadTreeHeader reads just the 17-byte tree header of the field record
// at the given offset, without decoding its id or value.
func (cf *ChunkFile) ReadTreeHeader(fieldOffset int64) (TreeHeader, error) {
	var buf [TreeHeaderSize]byte
	if _, err := cf.file.ReadAt(buf[:], fieldOffset); err != nil {
		return TreeHeader{}, apedberrors.NewFieldDecodeError(fieldOffset, err)
	}
	return TreeHeader{
		Balance: int8(buf[0]),
		Left:    binary.BigEndian.Uint64(buf[1:9]),
		Right:   binary.BigEndian.Uint64(buf[9:17]),
	}, nil
}

// WriteTreeHeader overwrites the tree header of the field record at
// fieldOffset in place, then recomputes and rewrites the containing
// chunk's CRC-24 as a full 256-byte read-modify-write. This is the only
// way field bytes already on disk are ever mutated.
func (cf *ChunkFile) WriteTreeHeader(fieldOffset int64, tree TreeHeader) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	chunkIndex := fieldOffset / ChunkSize
	chunkOffset := chunkIndex * ChunkSize

	var chunk [ChunkSize]byte
	if _, err := cf.file.ReadAt(chunk[:], chunkOffset); err != nil {
		return apedberrors.NewStorageError(err, apedberrors.ErrorCodeIO, "failed to read chunk for tree update").
			WithPath(cf.path).WithOffset(chunkOffset)
	}

	within := fieldOffset - chunkOffset
	if within < 0 || within+int64(TreeHeaderSize) > chunkBodySize {
		corruptErr := apedberrors.NewCorruptionError(
			nil, apedberrors.ErrorCodeCorruption, "field offset does not lie within its chunk body",
		).WithFieldOffset(fieldOffset)
		if cf.log != nil {
			cf.log.Errorw("rejecting tree header write", "error", corruptErr, "stack", corruptErr.StackTrace())
		}
		return corruptErr
	}

	chunk[within] = byte(tree.Balance)
	binary.BigEndian.PutUint64(chunk[within+1:within+9], tree.Left)
	binary.BigEndian.PutUint64(chunk[within+9:within+17], tree.Right)

	return cf.writeChunkBody(chunkOffset, chunk[:chunkBodySize])
}

// SetChunkFlag sets or clears a flag bit on the chunk at chunkIndex,
// recomputing its CRC. DBHEAD uses this to clear UNDER_CONSTRUCTION once
// all of its metadata fields have been written.
func (cf *ChunkFile) SetChunkFlag(chunkIndex int64, flag Flags, set bool) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	chunkOffset := chunkIndex * ChunkSize
	var chunk [ChunkSize]byte
	if _, err := cf.file.ReadAt(chunk[:], chunkOffset); err != nil {
		return apedberrors.NewStorageError(err, apedberrors.ErrorCodeIO, "failed to read chunk for flag update").
			WithPath(cf.path).WithOffset(chunkOffset)
	}

	if set {
		chunk[0] |= byte(flag)
	} else {
		chunk[0] &^= byte(flag)
	}

	return cf.writeChunkBody(chunkOffset, chunk[:chunkBodySize])
}
