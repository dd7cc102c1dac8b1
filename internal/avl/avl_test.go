package avl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apetypes"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func insertInts(t *testing.T, cf *store.ChunkFile, idx *Index, values []int64) []uint64 {
	t.Helper()
	offsets := make([]uint64, len(values))
	for i, v := range values {
		points, err := cf.AddEntryChunk([]store.Field{store.NewField("n", apetypes.NewInt(v))})
		require.NoError(t, err)
		require.Len(t, points, 1)
		offsets[i] = uint64(points[0])
		require.NoError(t, idx.Insert(offsets[i]))
	}
	return offsets
}

// inOrder walks the tree and returns the decoded integer value of every
// node in ascending key order, which is what an AVL tree's in-order
// traversal must produce regardless of its internal shape.
func inOrder(t *testing.T, cf *store.ChunkFile, offset uint64) []int64 {
	t.Helper()
	if offset == 0 {
		return nil
	}
	header, err := cf.ReadTreeHeader(int64(offset))
	require.NoError(t, err)
	field, err := cf.ReadField(int64(offset))
	require.NoError(t, err)

	var out []int64
	out = append(out, inOrder(t, cf, header.Left)...)
	out = append(out, field.Value.Int)
	out = append(out, inOrder(t, cf, header.Right)...)
	return out
}

func heightOfPublic(t *testing.T, idx *Index, offset uint64) int {
	t.Helper()
	h, err := idx.heightOf(offset)
	require.NoError(t, err)
	return h
}

func TestInsertMaintainsSortedOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	idx := New(cf, 0, 2, testLogger())
	values := []int64{50, 20, 70, 10, 30, 60, 80, 5, 15}
	insertInts(t, cf, idx, values)

	got := inOrder(t, cf, idx.Head())
	assert.Equal(t, []int64{5, 10, 15, 20, 30, 50, 60, 70, 80}, got)
}

func TestRebalanceKeepsTreeBalanced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	// Ascending inserts with laze == 0 force a rebalance after every
	// insert, so an AVL tree built this way must never degrade into a
	// linked list the way an unbalanced BST would.
	idx := New(cf, 0, 0, testLogger())
	var values []int64
	for i := int64(1); i <= 31; i++ {
		values = append(values, i)
	}
	insertInts(t, cf, idx, values)

	got := inOrder(t, cf, idx.Head())
	assert.Len(t, got, 31)
	assert.Equal(t, int64(1), got[0])
	assert.Equal(t, int64(31), got[len(got)-1])

	height := heightOfPublic(t, idx, idx.Head())
	// 31 nodes balanced is height 5; a degenerate chain would be height 31.
	assert.LessOrEqual(t, height, 6)
}

func TestSearchFindsInsertedAndMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	idx := New(cf, 0, 1, testLogger())
	offsets := insertInts(t, cf, idx, []int64{40, 10, 60, 5, 25})

	found, ok, err := idx.Search(offsets[2])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, offsets[2], found)

	points, err := cf.AddEntryChunk([]store.Field{store.NewField("n", apetypes.NewInt(999))})
	require.NoError(t, err)
	_, ok, err = idx.Search(uint64(points[0]))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualKeysDescendLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apedb")
	cf, err := store.Create(path, 0600, testLogger())
	require.NoError(t, err)
	defer cf.Close()

	idx := New(cf, 0, 5, testLogger())
	offsets := insertInts(t, cf, idx, []int64{7, 7, 7})

	header, err := cf.ReadTreeHeader(int64(offsets[0]))
	require.NoError(t, err)
	assert.Equal(t, offsets[1], header.Left)

	header2, err := cf.ReadTreeHeader(int64(offsets[1]))
	require.NoError(t, err)
	assert.Equal(t, offsets[2], header2.Left)
}
