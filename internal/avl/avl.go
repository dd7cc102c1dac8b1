// Package avl implements the lazy AVL index threaded through field records
// already written to a ChunkFile. Unlike a conventional AVL tree, nothing is
// kept in memory between calls: the balance factor and child offsets of
// every node live in the 17-byte tree header of its field record, and
// Index only ever touches them through ChunkFile's read-modify-write
// helpers. Rebalancing is deferred ("lazed") across a configurable number
// of inserts rather than performed on every single one.
package avl

import (
	"go.uber.org/zap"

	"github.com/apedb/apedb/internal/store"
	apedberrors "github.com/apedb/apedb/pkg/errors"
)

// Index is the lazy AVL index over the field records of a single list's
// entries. Head is the absolute file offset of the tree's root field
// record, or 0 before the first field has ever been inserted (0 can never
// be a valid field offset, since byte 0 of the file is the first chunk's
// header byte and field records start at byte 2 or 9 of a chunk).
type Index struct {
	file *store.ChunkFile
	head uint64
	laze uint8

	dirty uint8
	log   *zap.SugaredLogger
}

// New builds an Index over file, rooted at head (0 if the tree is empty),
// rebalancing after every laze+1 completed inserts (after every insert
// when laze is 0).
func New(file *store.ChunkFile, head uint64, laze uint8, log *zap.SugaredLogger) *Index {
	return &Index{file: file, head: head, laze: laze, log: log}
}

// Head returns the current root offset, 0 if the tree is still empty.
func (idx *Index) Head() uint64 {
	return idx.head
}

// Insert splices the field record at offset p into the tree. Equal keys
// (CompareAt returns 0) descend left, so the left subtree of any node
// holds everything less-than-or-equal-to it and the right subtree holds
// everything strictly greater.
func (idx *Index) Insert(p uint64) error {
	if idx.head == 0 {
		idx.head = p
		return idx.maybeRebalance()
	}

	reader := idx.file.ReaderAt()
	current := idx.head
	for {
		cmp, err := store.CompareAt(reader, int64(p), int64(current))
		if err != nil {
			return err
		}

		header, err := idx.file.ReadTreeHeader(int64(current))
		if err != nil {
			return err
		}

		var goLeft bool
		if cmp <= 0 {
			goLeft = true
		}

		var child uint64
		if goLeft {
			child = header.Left
		} else {
			child = header.Right
		}

		if child == 0 {
			if goLeft {
				header.Left = p
			} else {
				header.Right = p
			}
			if err := idx.file.WriteTreeHeader(int64(current), header); err != nil {
				return err
			}
			break
		}

		current = child
	}

	return idx.maybeRebalance()
}

// Search walks the tree looking for a field record comparing equal to the
// one at offset p (which need not already be in the tree — a probe value
// written anywhere readable works). It returns the offset of a matching
// node and true, or false if none exists.
func (idx *Index) Search(p uint64) (uint64, bool, error) {
	reader := idx.file.ReaderAt()
	current := idx.head
	for current != 0 {
		cmp, err := store.CompareAt(reader, int64(p), int64(current))
		if err != nil {
			return 0, false, err
		}
		if cmp == 0 {
			return current, true, nil
		}

		header, err := idx.file.ReadTreeHeader(int64(current))
		if err != nil {
			return 0, false, err
		}

		if cmp < 0 {
			current = header.Left
		} else {
			current = header.Right
		}
	}
	return 0, false, nil
}

// SearchField looks up a key that has not necessarily been written to the
// file yet, comparing it in memory against each decoded node rather than
// requiring the caller to first persist a probe record — the public
// lookup contract callers outside this package use. Search is the
// cheaper internal primitive used when the key is already a field record
// on disk (as during Insert's own descent).
func (idx *Index) SearchField(key store.Field) (uint64, bool, error) {
	current := idx.head
	for current != 0 {
		field, err := idx.file.ReadField(int64(current))
		if err != nil {
			return 0, false, err
		}

		cmp := store.Compare(key, field)
		if cmp == 0 {
			return current, true, nil
		}

		header, err := idx.file.ReadTreeHeader(int64(current))
		if err != nil {
			return 0, false, err
		}

		if cmp < 0 {
			current = header.Left
		} else {
			current = header.Right
		}
	}
	return 0, false, nil
}

// maybeRebalance increments the pending-insert counter and, once it
// exceeds laze, rebalances the whole tree and resets the counter.
func (idx *Index) maybeRebalance() error {
	idx.dirty++
	if idx.dirty <= idx.laze {
		return nil
	}
	idx.dirty = 0

	if idx.head == 0 {
		return nil
	}

	newHead, _, err := idx.rebalanceSubtree(idx.head)
	if err != nil {
		return err
	}
	idx.head = newHead

	if idx.log != nil {
		idx.log.Debugw("avl rebalance pass complete", "head", idx.head)
	}
	return nil
}

// rebalanceSubtree recursively rebalances the subtree rooted at offset,
// visiting children before their parent so every balance factor it reads
// already reflects any rotation performed below it. It returns the offset
// of the (possibly new) subtree root and its height.
func (idx *Index) rebalanceSubtree(offset uint64) (uint64, int, error) {
	if offset == 0 {
		return 0, 0, nil
	}

	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return 0, 0, err
	}

	newLeft, leftHeight, err := idx.rebalanceSubtree(header.Left)
	if err != nil {
		return 0, 0, err
	}
	newRight, rightHeight, err := idx.rebalanceSubtree(header.Right)
	if err != nil {
		return 0, 0, err
	}

	header.Left = newLeft
	header.Right = newRight
	balance := leftHeight - rightHeight
	header.Balance = int8(balance)
	if err := idx.file.WriteTreeHeader(int64(offset), header); err != nil {
		return 0, 0, err
	}

	switch {
	case balance > 1:
		leftHeader, err := idx.file.ReadTreeHeader(int64(newLeft))
		if err != nil {
			return 0, 0, err
		}
		if int(leftHeader.Balance) < 0 {
			newLeft, err = idx.rotateLeft(newLeft)
			if err != nil {
				return 0, 0, err
			}
			if err := idx.setChild(offset, true, newLeft); err != nil {
				return 0, 0, err
			}
		}
		return idx.rotateRightRoot(offset)

	case balance < -1:
		rightHeader, err := idx.file.ReadTreeHeader(int64(newRight))
		if err != nil {
			return 0, 0, err
		}
		if int(rightHeader.Balance) > 0 {
			newRight, err = idx.rotateRight(newRight)
			if err != nil {
				return 0, 0, err
			}
			if err := idx.setChild(offset, false, newRight); err != nil {
				return 0, 0, err
			}
		}
		return idx.rotateLeftRoot(offset)
	}

	height := leftHeight
	if rightHeight > height {
		height = rightHeight
	}
	return offset, height + 1, nil
}

// setChild overwrites just the left or right child pointer of the node at
// offset, preserving its current balance factor and other child.
func (idx *Index) setChild(offset uint64, left bool, child uint64) error {
	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return err
	}
	if left {
		header.Left = child
	} else {
		header.Right = child
	}
	return idx.file.WriteTreeHeader(int64(offset), header)
}

// rotateRightRoot performs a single right rotation around offset,
// recomputing the balance factors of both the displaced old root (now a
// child) and the new root, and returns the new subtree root and its
// height.
func (idx *Index) rotateRightRoot(offset uint64) (uint64, int, error) {
	newRoot, err := idx.rotateRight(offset)
	if err != nil {
		return 0, 0, err
	}
	if _, _, err := idx.recomputeLocal(offset); err != nil {
		return 0, 0, err
	}
	return idx.recomputeLocal(newRoot)
}

// rotateLeftRoot is rotateRightRoot's mirror image.
func (idx *Index) rotateLeftRoot(offset uint64) (uint64, int, error) {
	newRoot, err := idx.rotateLeft(offset)
	if err != nil {
		return 0, 0, err
	}
	if _, _, err := idx.recomputeLocal(offset); err != nil {
		return 0, 0, err
	}
	return idx.recomputeLocal(newRoot)
}

// recomputeLocal re-derives a node's balance factor and height from the
// heights of its two child subtrees, as measured by heightOf — used right
// after a rotation to fix up the one or two nodes it touched.
func (idx *Index) recomputeLocal(offset uint64) (uint64, int, error) {
	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return 0, 0, err
	}
	leftHeight, err := idx.heightOf(header.Left)
	if err != nil {
		return 0, 0, err
	}
	rightHeight, err := idx.heightOf(header.Right)
	if err != nil {
		return 0, 0, err
	}

	header.Balance = int8(leftHeight - rightHeight)
	if err := idx.file.WriteTreeHeader(int64(offset), header); err != nil {
		return 0, 0, err
	}

	height := leftHeight
	if rightHeight > height {
		height = rightHeight
	}
	return offset, height + 1, nil
}

// heightOf computes the height of the subtree rooted at offset (0 for an
// absent child) by recursively walking every node beneath it. It does not
// reuse the heights rebalanceSubtree already computed, so each call
// re-reads the whole subtree it is given.
func (idx *Index) heightOf(offset uint64) (int, error) {
	if offset == 0 {
		return 0, nil
	}
	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return 0, err
	}
	leftHeight, err := idx.heightOf(header.Left)
	if err != nil {
		return 0, err
	}
	rightHeight, err := idx.heightOf(header.Right)
	if err != nil {
		return 0, err
	}
	if leftHeight > rightHeight {
		return leftHeight + 1, nil
	}
	return rightHeight + 1, nil
}

// rotateLeft performs a single left rotation around the node at offset,
// promoting its right child, and returns the new subtree root's offset.
func (idx *Index) rotateLeft(offset uint64) (uint64, error) {
	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return 0, err
	}
	if header.Right == 0 {
		return 0, apedberrors.NewCorruptionError(
			nil, apedberrors.ErrorCodeCorruption, "left rotation requires a right child",
		).WithFieldOffset(int64(offset))
	}

	pivot := header.Right
	pivotHeader, err := idx.file.ReadTreeHeader(int64(pivot))
	if err != nil {
		return 0, err
	}

	header.Right = pivotHeader.Left
	if err := idx.file.WriteTreeHeader(int64(offset), header); err != nil {
		return 0, err
	}

	pivotHeader.Left = offset
	if err := idx.file.WriteTreeHeader(int64(pivot), pivotHeader); err != nil {
		return 0, err
	}

	return pivot, nil
}

// rotateRight performs a single right rotation around the node at offset,
// promoting its left child, and returns the new subtree root's offset.
func (idx *Index) rotateRight(offset uint64) (uint64, error) {
	header, err := idx.file.ReadTreeHeader(int64(offset))
	if err != nil {
		return 0, err
	}
	if header.Left == 0 {
		return 0, apedberrors.NewCorruptionError(
			nil, apedberrors.ErrorCodeCorruption, "right rotation requires a left child",
		).WithFieldOffset(int64(offset))
	}

	pivot := header.Left
	pivotHeader, err := idx.file.ReadTreeHeader(int64(pivot))
	if err != nil {
		return 0, err
	}

	header.Left = pivotHeader.Right
	if err := idx.file.WriteTreeHeader(int64(offset), header); err != nil {
		return 0, err
	}

	pivotHeader.Right = offset
	if err := idx.file.WriteTreeHeader(int64(pivot), pivotHeader); err != nil {
		return 0, err
	}

	return pivot, nil
}
