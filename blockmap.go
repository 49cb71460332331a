package ssfs

import (
	"encoding/binary"

	"github.com/ssfs-io/ssfs/errors"
)

// An indirection page is a block of PointersPerBlock little-endian u32
// entries. Entry 0 means "unmapped".

func pointerAt(page []byte, index int) uint32 {
	return binary.LittleEndian.Uint32(page[index*4 : index*4+4])
}

func setPointerAt(page []byte, index int, value uint32) {
	binary.LittleEndian.PutUint32(page[index*4:index*4+4], value)
}

// allocZeroedBlock claims a free block and zeroes it on disk before the
// caller links it anywhere. If the zeroing write fails the block is
// released again so the bitmap stays honest.
func (fs *FileSystem) allocZeroedBlock() (uint32, error) {
	block, err := fs.alloc.FindFree()
	if err != nil {
		return 0, err
	}
	if err := fs.dev.WriteSector(block, make([]byte, BlockSize)); err != nil {
		fs.alloc.Release(block)
		return 0, err
	}
	return block, nil
}

// blockForOffset translates a byte offset within a file to the physical
// block backing it. With allocate set, missing data blocks and indirection
// pages are created on demand: each new block is zeroed on disk first, then
// linked into its parent, and a modified indirection page is written back
// immediately. The inode itself is updated in memory only; persisting it is
// the caller's responsibility.
//
// A return of (0, nil) means the offset has no mapping and allocation was
// not requested.
func (fs *FileSystem) blockForOffset(ino *Inode, offset int64, allocate bool) (uint32, error) {
	if !fs.mounted {
		return 0, errors.ErrDiskNotMounted
	}
	if offset < 0 {
		return 0, errors.ErrInvalidOffset
	}

	blockIndex := offset / BlockSize

	// Direct slots.
	if blockIndex < 4 {
		if ino.DirectBlocks[blockIndex] == 0 && allocate {
			newBlock, err := fs.allocZeroedBlock()
			if err != nil {
				return 0, err
			}
			ino.DirectBlocks[blockIndex] = newBlock
		}
		return ino.DirectBlocks[blockIndex], nil
	}

	// Single-indirect region.
	blockIndex -= 4
	if blockIndex < PointersPerBlock {
		if ino.IndirectBlock == 0 {
			if !allocate {
				return 0, nil
			}
			newBlock, err := fs.allocZeroedBlock()
			if err != nil {
				return 0, err
			}
			ino.IndirectBlock = newBlock
		}

		return fs.entryInPage(ino.IndirectBlock, int(blockIndex), allocate)
	}

	// Double-indirect region.
	blockIndex -= PointersPerBlock
	if blockIndex < PointersPerBlock*PointersPerBlock {
		if ino.DoubleIndirect == 0 {
			if !allocate {
				return 0, nil
			}
			newBlock, err := fs.allocZeroedBlock()
			if err != nil {
				return 0, err
			}
			ino.DoubleIndirect = newBlock
		}

		page := make([]byte, BlockSize)
		if err := fs.dev.ReadSector(ino.DoubleIndirect, page); err != nil {
			return 0, err
		}

		indirectIndex := int(blockIndex / PointersPerBlock)
		entryIndex := int(blockIndex % PointersPerBlock)

		indirectBlock := pointerAt(page, indirectIndex)
		if indirectBlock == 0 {
			if !allocate {
				return 0, nil
			}
			newBlock, err := fs.allocZeroedBlock()
			if err != nil {
				return 0, err
			}
			setPointerAt(page, indirectIndex, newBlock)
			if err := fs.dev.WriteSector(ino.DoubleIndirect, page); err != nil {
				fs.alloc.Release(newBlock)
				return 0, err
			}
			indirectBlock = newBlock
		}

		return fs.entryInPage(indirectBlock, entryIndex, allocate)
	}

	return 0, errors.ErrInvalidOffset
}

// entryInPage resolves one entry of an indirection page, allocating a
// zeroed data block and writing the page back when the entry is empty and
// allocation was requested.
func (fs *FileSystem) entryInPage(pageBlock uint32, index int, allocate bool) (uint32, error) {
	page := make([]byte, BlockSize)
	if err := fs.dev.ReadSector(pageBlock, page); err != nil {
		return 0, err
	}

	entry := pointerAt(page, index)
	if entry == 0 && allocate {
		newBlock, err := fs.allocZeroedBlock()
		if err != nil {
			return 0, err
		}
		setPointerAt(page, index, newBlock)
		if err := fs.dev.WriteSector(pageBlock, page); err != nil {
			fs.alloc.Release(newBlock)
			return 0, err
		}
		entry = newBlock
	}
	return entry, nil
}
