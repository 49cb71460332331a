package ssfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ssfs-io/ssfs/errors"
)

// Inode is the 32-byte on-disk record for one file. Valid is 0 for a free
// slot and 1 for an allocated file. A block pointer of 0 means "unmapped";
// block 0 holds the superblock and can never back file data, which is what
// makes 0 usable as the null pointer.
//
// The three padding bytes after Valid preserve the record layout produced
// by the original implementation, so images interoperate byte for byte.
type Inode struct {
	Valid          uint8
	_              [3]byte
	Size           uint32
	DirectBlocks   [4]uint32
	IndirectBlock  uint32
	DoubleIndirect uint32
}

// IsAllocated reports whether the inode represents a live file.
func (ino *Inode) IsAllocated() bool {
	return ino.Valid != 0
}

func deserializeInode(data []byte) Inode {
	var ino Inode
	binary.Read(bytes.NewReader(data), binary.LittleEndian, &ino)
	return ino
}

func serializeInode(ino *Inode, dst []byte) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ino)
	copy(dst, buf.Bytes())
}

// inodeLocation converts an inode number to the block that holds it and the
// byte offset of the record inside that block. Block 0 is the superblock,
// so the inode table starts at block 1.
func inodeLocation(inodeNum int) (block uint32, offset int) {
	block = 1 + uint32(inodeNum)/InodesPerBlock
	offset = (inodeNum % InodesPerBlock) * InodeSize
	return
}

func (fs *FileSystem) checkInodeNum(inodeNum int) error {
	if inodeNum < 0 || uint32(inodeNum) >= fs.superblock.TotalInodes() {
		return errors.ErrInvalidInode.WithMessage(
			fmt.Sprintf(
				"inode %d not in [0, %d)", inodeNum, fs.superblock.TotalInodes(),
			),
		)
	}
	return nil
}

// readInode reads one inode record. bypassMountCheck is set only during
// mount-time bitmap reconstruction, before the session is marked mounted.
func (fs *FileSystem) readInode(inodeNum int, bypassMountCheck bool) (Inode, error) {
	if !fs.mounted && !bypassMountCheck {
		return Inode{}, errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return Inode{}, err
	}

	block, offset := inodeLocation(inodeNum)
	buf := make([]byte, BlockSize)
	if err := fs.dev.ReadSector(block, buf); err != nil {
		return Inode{}, err
	}
	return deserializeInode(buf[offset : offset+InodeSize]), nil
}

// writeInode persists one inode record with a read-modify-write of its
// block, preserving the neighboring records.
func (fs *FileSystem) writeInode(inodeNum int, ino *Inode) error {
	if !fs.mounted {
		return errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return err
	}

	block, offset := inodeLocation(inodeNum)
	buf := make([]byte, BlockSize)
	if err := fs.dev.ReadSector(block, buf); err != nil {
		return err
	}
	serializeInode(ino, buf[offset:offset+InodeSize])
	return fs.dev.WriteSector(block, buf)
}
