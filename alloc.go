package ssfs

import (
	"github.com/boljen/go-bitmap"
	"github.com/ssfs-io/ssfs/errors"
)

// Allocator tracks which blocks of the image are in use. The bitmap is
// purely in-memory: it is rebuilt at mount time by walking every valid
// inode's pointer graph, so the on-disk format needs no free list.
type Allocator struct {
	used           bitmap.Bitmap
	totalBlocks    uint32
	firstDataBlock uint32
}

// NewAllocator creates an allocator for an image of `totalBlocks` blocks
// whose inode table occupies blocks [1, numInodeBlocks]. The superblock and
// inode blocks are marked used immediately.
func NewAllocator(totalBlocks, numInodeBlocks uint32) *Allocator {
	alloc := &Allocator{
		used:           bitmap.NewSlice(int(totalBlocks)),
		totalBlocks:    totalBlocks,
		firstDataBlock: numInodeBlocks + 1,
	}
	for i := uint32(0); i <= numInodeBlocks; i++ {
		alloc.used.Set(int(i), true)
	}
	return alloc
}

// FindFree claims and returns the lowest-numbered free block in the data
// pool. The ascending first-fit scan is deliberate; callers depend on the
// deterministic order.
func (alloc *Allocator) FindFree() (uint32, error) {
	for i := alloc.firstDataBlock; i < alloc.totalBlocks; i++ {
		if !alloc.used.Get(int(i)) {
			alloc.used.Set(int(i), true)
			return i, nil
		}
	}
	return 0, errors.ErrOutOfSpace
}

// Release marks a block free again. Block 0 and out-of-range numbers are
// ignored; metadata blocks below the data pool are never released by the
// file system, which only calls this with pointers taken from inodes.
func (alloc *Allocator) Release(block uint32) {
	if block > 0 && block < alloc.totalBlocks {
		alloc.used.Set(int(block), false)
	}
}

// Mark records a block as used during mount-time reconstruction. Marking an
// already-used block is a no-op.
func (alloc *Allocator) Mark(block uint32) {
	if block < alloc.totalBlocks {
		alloc.used.Set(int(block), true)
	}
}

// InUse reports whether a block is currently allocated.
func (alloc *Allocator) InUse(block uint32) bool {
	return block < alloc.totalBlocks && alloc.used.Get(int(block))
}

// FreeCount returns the number of unallocated blocks.
func (alloc *Allocator) FreeCount() uint32 {
	free := uint32(0)
	for i := uint32(0); i < alloc.totalBlocks; i++ {
		if !alloc.used.Get(int(i)) {
			free++
		}
	}
	return free
}

// TotalBlocks returns the size of the image the allocator covers.
func (alloc *Allocator) TotalBlocks() uint32 {
	return alloc.totalBlocks
}
