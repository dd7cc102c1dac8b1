package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	h := NewHeader("Ape Database!", "root")
	require.NoError(t, WriteHeader(cf, h))

	assert.True(t, cf.Size() == ChunkSize || cf.Size() == 2*ChunkSize)

	ok, err := cf.VerifyChunk(0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ReadHeader(cf)
	require.NoError(t, err)
	assert.Equal(t, "Ape Database!", got.Name)
	assert.Equal(t, "root", got.Owner)
	assert.Equal(t, int64(DefaultVersion), got.Version)
	assert.Equal(t, int64(DefaultUUIDCacheSize), got.UUIDCacheSize)
	assert.True(t, got.Sane)
	assert.False(t, got.Insane)
}

func TestWriteReadHeaderOverflowsIntoContinuedChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	name := strings.Repeat("n", 30)
	owner := strings.Repeat("o", 30)
	h := NewHeader(name, owner)
	require.NoError(t, WriteHeader(cf, h))

	// The combined field stream exceeds stub capacity, so this must have
	// split into a continued chunk followed by a terminating stub.
	assert.Equal(t, int64(2*ChunkSize), cf.Size())

	firstChunk, err := cf.ReadChunk(0)
	require.NoError(t, err)
	assert.True(t, firstChunk.HasFlag(FlagContinued))

	for i := int64(0); i < cf.ChunkCount(); i++ {
		ok, err := cf.VerifyChunk(i)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	got, err := ReadHeader(cf)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, int64(DefaultVersion), got.Version)
	assert.Equal(t, int64(DefaultUUIDCacheSize), got.UUIDCacheSize)
	assert.True(t, got.Sane)
	assert.False(t, got.Insane)
}
