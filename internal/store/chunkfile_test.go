package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apedb/apedb/pkg/apetypes"
	apedberrors "github.com/apedb/apedb/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestCreateRefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")

	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	require.NoError(t, cf.Close())

	_, err = Create(path, 0600, testLogger())
	require.Error(t, err)

	storageErr, ok := apedberrors.AsStorageError(err)
	require.True(t, ok)
	assert.Equal(t, apedberrors.ErrorCodeFileExists, storageErr.Code())
}

func TestOpenRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nope.apedb")

	_, err := Open(path, testLogger())
	require.Error(t, err)

	storageErr, ok := apedberrors.AsStorageError(err)
	require.True(t, ok)
	assert.Equal(t, apedberrors.ErrorCodeIO, storageErr.Code())
}

func TestCreateMakesMissingParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "test.apedb")

	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestAddEntryChunkSingleStubChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	fields := []Field{NewField("id", apetypes.NewString("Hello"))}
	points, err := cf.AddEntryChunk(fields)
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.Equal(t, int64(ChunkSize), cf.Size())
	verified, err := cf.VerifyChunk(0)
	require.NoError(t, err)
	assert.True(t, verified)

	got, err := cf.ReadField(points[0])
	require.NoError(t, err)
	assert.Equal(t, "id", got.ID)
}

func TestAddEntryChunkOverflowsToContinued(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	bigString := make([]byte, 200)
	for i := range bigString {
		bigString[i] = 'x'
	}
	fields := []Field{
		NewField("a", apetypes.NewString(string(bigString))),
		NewField("b", apetypes.NewString(string(bigString))),
	}

	points, err := cf.AddEntryChunk(fields)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(2*ChunkSize), cf.Size())

	for i := int64(0); i < cf.ChunkCount(); i++ {
		ok, err := cf.VerifyChunk(i)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyChunkDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)

	_, err = cf.AddEntryChunk([]Field{NewField("id", apetypes.NewString("Hello"))})
	require.NoError(t, err)
	require.NoError(t, cf.Close())

	raw, err := os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = raw.WriteAt([]byte{0xFF}, 5)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	cf2, err := Open(path, testLogger())
	require.NoError(t, err)
	defer cf2.Close()

	ok, err := cf2.VerifyChunk(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllChunkOffsetsCoversWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	bigString := make([]byte, 200)
	for i := range bigString {
		bigString[i] = 'x'
	}
	_, err = cf.AddEntryChunk([]Field{
		NewField("a", apetypes.NewString(string(bigString))),
		NewField("b", apetypes.NewString(string(bigString))),
	})
	require.NoError(t, err)

	offsets := cf.AllChunkOffsets()
	require.Len(t, offsets, int(cf.ChunkCount()))
	for i, off := range offsets {
		assert.Equal(t, int64(i)*ChunkSize, off)

		chunk, err := cf.ReadChunk(int64(i))
		require.NoError(t, err)
		assert.Equal(t, VariantEntry, chunk.Variant())
	}
}

func TestWriteTreeHeaderPreservesCRC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	points, err := cf.AddEntryChunk([]Field{NewField("id", apetypes.NewString("Hello"))})
	require.NoError(t, err)

	require.NoError(t, cf.WriteTreeHeader(points[0], TreeHeader{Balance: 1, Left: 0, Right: 0}))

	ok, err := cf.VerifyChunk(0)
	require.NoError(t, err)
	assert.True(t, ok)

	tree, err := cf.ReadTreeHeader(points[0])
	require.NoError(t, err)
	assert.Equal(t, int8(1), tree.Balance)
}
