package apedb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apedb/apedb/internal/schema"
	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apetypes"
	apedberrors "github.com/apedb/apedb/pkg/errors"
	"github.com/apedb/apedb/pkg/uuidpool"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newTestList(t *testing.T, laze uint8) (*List, *store.ChunkFile) {
	list, cf, _ := newTestListAtPath(t, laze)
	return list, cf
}

func newTestListAtPath(t *testing.T, laze uint8) (*List, *store.ChunkFile, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.WriteHeader(cf, store.NewHeader("Ape Database!", "root")))

	structure := schema.New("doc", []schema.Requirement{
		{FieldID: "id", ExpectedKind: apetypes.KindString},
	})
	list := New(&Config{Structure: structure, File: cf, Laze: laze, Logger: testLogger()})
	return list, cf, path
}

func TestAddEntryIndexesFirstEntry(t *testing.T) {
	list, cf := newTestList(t, 2)
	defer cf.Close()

	id := uuidpool.New()
	err := list.AddEntry(NewEntry(id, []store.Field{store.NewField("id", apetypes.NewString("Hello"))}))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), list.EntryCount())
	assert.NotZero(t, list.Head())
	assert.Equal(t, int64(0), cf.Size()%store.ChunkSize)

	off, ok, err := list.avl.Search(list.Head())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, list.Head(), off)
}

func TestAddThreeEntriesYieldsSortedInOrderTraversal(t *testing.T) {
	list, cf := newTestList(t, 1)
	defer cf.Close()

	for _, v := range []string{"Test1", "Test2", "Test3"} {
		err := list.AddEntry(NewEntry(uuidpool.New(), []store.Field{store.NewField("id", apetypes.NewString(v))}))
		require.NoError(t, err)
	}

	var walk func(offset uint64) []string
	walk = func(offset uint64) []string {
		if offset == 0 {
			return nil
		}
		header, err := cf.ReadTreeHeader(int64(offset))
		require.NoError(t, err)
		field, err := cf.ReadField(int64(offset))
		require.NoError(t, err)

		var out []string
		out = append(out, walk(header.Left)...)
		out = append(out, field.Value.Str)
		out = append(out, walk(header.Right)...)
		return out
	}

	got := walk(list.Head())
	assert.Equal(t, []string{"Test1", "Test2", "Test3"}, got)
}

func TestAddEntryRejectsOversizedValueWithoutGrowingFile(t *testing.T) {
	list, cf := newTestList(t, 2)
	defer cf.Close()

	before := cf.Size()
	oversized := strings.Repeat("x", 300)
	err := list.AddEntry(NewEntry(uuidpool.New(), []store.Field{store.NewField("id", apetypes.NewString(oversized))}))
	require.Error(t, err)

	ve, ok := apedberrors.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, apedberrors.ErrorCodeValueTooLarge, ve.Code())
	assert.Equal(t, before, cf.Size())
}

func TestAddEntryRejectsSchemaViolation(t *testing.T) {
	list, cf := newTestList(t, 2)
	defer cf.Close()

	err := list.AddEntry(NewEntry(uuidpool.New(), []store.Field{store.NewField("id", apetypes.NewInt(5))}))
	require.Error(t, err)
	assert.True(t, apedberrors.IsValidationError(err))
	assert.Equal(t, apedberrors.ErrorCodeSchemaViolation, apedberrors.GetErrorCode(err))
}

func TestAddEntryRejectsEmptyEntry(t *testing.T) {
	list, cf := newTestList(t, 2)
	defer cf.Close()

	err := list.AddEntry(NewEntry(uuidpool.New(), nil))
	require.Error(t, err)
	assert.Equal(t, apedberrors.ErrorCodeEmptyEntry, apedberrors.GetErrorCode(err))
}

func TestAddEntrySpanningContinuedAndStubChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()
	require.NoError(t, store.WriteHeader(cf, store.NewHeader("Ape Database!", "root")))

	structure := schema.New("doc", []schema.Requirement{
		{FieldID: "a", ExpectedKind: apetypes.KindString},
		{FieldID: "b", ExpectedKind: apetypes.KindString},
	})
	list := New(&Config{Structure: structure, File: cf, Laze: 2, Logger: testLogger()})

	before := cf.Size()
	// Two 200-byte-valued fields each encode to 221 bytes — comfortably
	// under a single chunk's capacity on their own, but their 442-byte
	// sum exceeds a stub chunk's 251-byte capacity, forcing one
	// continued chunk (capacity 244) followed by a terminating stub.
	big := strings.Repeat("y", 200)
	fields := []store.Field{
		store.NewField("a", apetypes.NewString(big)),
		store.NewField("b", apetypes.NewString(big)),
	}
	err = list.AddEntry(NewEntry(uuidpool.New(), fields))
	require.NoError(t, err)

	assert.Equal(t, before+2*store.ChunkSize, cf.Size())
}

func TestCorruptedChunkFailsVerificationOthersUnaffected(t *testing.T) {
	list, cf, path := newTestListAtPath(t, 2)
	defer cf.Close()

	require.NoError(t, list.AddEntry(NewEntry(uuidpool.New(), []store.Field{store.NewField("id", apetypes.NewString("Hello"))})))

	entryChunkIndex := cf.ChunkCount() - 1

	raw, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = raw.WriteAt([]byte{0xFF}, entryChunkIndex*store.ChunkSize+5)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	ok, err := cf.VerifyChunk(entryChunkIndex)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cf.VerifyChunk(0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClosedListRejectsAddEntry(t *testing.T) {
	list, cf := newTestList(t, 2)
	defer cf.Close()

	require.NoError(t, list.Close())
	err := list.AddEntry(NewEntry(uuidpool.New(), []store.Field{store.NewField("id", apetypes.NewString("x"))}))
	assert.ErrorIs(t, err, ErrListClosed)
}
