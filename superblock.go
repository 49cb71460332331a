package ssfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ssfs-io/ssfs/errors"
	"github.com/ssfs-io/ssfs/vdisk"
)

// BlockSize is the size of one file system block, in bytes. It equals the
// device sector size; the file system addresses the device one block per
// sector.
const BlockSize = vdisk.SectorSize

// InodeSize is the size of one on-disk inode record.
const InodeSize = 32

// InodesPerBlock is the number of inode records packed into one block.
const InodesPerBlock = BlockSize / InodeSize

// PointersPerBlock is the number of 32-bit block pointers in one
// indirection page.
const PointersPerBlock = BlockSize / 4

// MaxFileSize is the largest file the block map can address:
// 4 direct + 256 single-indirect + 256*256 double-indirect blocks.
const MaxFileSize = (4 + PointersPerBlock + PointersPerBlock*PointersPerBlock) * BlockSize

// Magic identifies a formatted SSFS image. It occupies the first 16 bytes
// of block 0.
var Magic = [16]byte{
	0xF0, 0x55, 0x4C, 0x49, 0x45, 0x47, 0x45, 0x49,
	0x4E, 0x46, 0x4F, 0x30, 0x39, 0x34, 0x30, 0x0F,
}

// Superblock is the 28-byte record at the start of block 0. The remainder
// of the block is zero padding.
type Superblock struct {
	Magic          [16]byte
	NumBlocks      uint32
	NumInodeBlocks uint32
	BlockSize      uint32
}

// SuperblockSize is the serialized size of a [Superblock].
const SuperblockSize = 28

// TotalInodes returns the number of inode records the image holds.
func (sb Superblock) TotalInodes() uint32 {
	return sb.NumInodeBlocks * InodesPerBlock
}

// FirstDataBlock returns the index of the first block in the data pool.
func (sb Superblock) FirstDataBlock() uint32 {
	return sb.NumInodeBlocks + 1
}

// Validate checks the magic number and the recorded geometry against the
// device the superblock was read from.
func (sb *Superblock) Validate(totalSectors uint32) error {
	if sb.Magic != Magic {
		return errors.ErrCorruptDisk.WithMessage("magic number mismatch")
	}
	if sb.BlockSize != BlockSize {
		return errors.ErrCorruptDisk.WithMessage(
			fmt.Sprintf("block size %d, expected %d", sb.BlockSize, BlockSize),
		)
	}
	if sb.NumBlocks != totalSectors {
		return errors.ErrCorruptDisk.WithMessage(
			fmt.Sprintf(
				"superblock records %d blocks but the device has %d sectors",
				sb.NumBlocks,
				totalSectors,
			),
		)
	}
	if sb.NumInodeBlocks == 0 || sb.FirstDataBlock() >= sb.NumBlocks {
		return errors.ErrCorruptDisk.WithMessage(
			fmt.Sprintf("inode block count %d leaves no data pool", sb.NumInodeBlocks),
		)
	}
	return nil
}

func deserializeSuperblock(block []byte) (Superblock, error) {
	var sb Superblock
	reader := bytes.NewReader(block)
	if err := binary.Read(reader, binary.LittleEndian, &sb); err != nil {
		return sb, errors.ErrCorruptDisk.Wrap(err)
	}
	return sb, nil
}
