package ssfs

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"
	"github.com/ssfs-io/ssfs/errors"
	"github.com/ssfs-io/ssfs/vdisk"
)

// Format writes a fresh, empty file system onto the image at `path`. The
// requested inode count is clamped to at least 1 and rounded up to whole
// inode blocks, so the effective count is the next multiple of
// [InodesPerBlock]. The image must leave room for at least one data block.
func Format(path string, inodes int) error {
	dev, err := vdisk.Open(path)
	if err != nil {
		return err
	}

	err = FormatDevice(dev, inodes)
	closeErr := dev.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// FormatDevice formats an already-open device. The caller keeps ownership
// of the device handle.
func FormatDevice(dev *vdisk.Device, inodes int) error {
	if inodes <= 0 {
		inodes = 1
	}

	numInodeBlocks := uint32((inodes + InodesPerBlock - 1) / InodesPerBlock)
	totalBlocks := dev.SizeInSectors()

	// The superblock, the inode blocks, and at least one data block must
	// all fit.
	if numInodeBlocks+1 >= totalBlocks {
		return errors.ErrOutOfSpace.WithMessage(
			fmt.Sprintf(
				"%d inode blocks leave no data pool on a %d-block image",
				numInodeBlocks,
				totalBlocks,
			),
		)
	}

	sb := Superblock{
		Magic:          Magic,
		NumBlocks:      totalBlocks,
		NumInodeBlocks: numInodeBlocks,
		BlockSize:      BlockSize,
	}

	blockBuffer := make([]byte, BlockSize)
	writer := bytewriter.New(blockBuffer)
	binary.Write(writer, binary.LittleEndian, &sb)

	if err := dev.WriteSector(0, blockBuffer); err != nil {
		return err
	}

	// Zero out the inode table so every slot starts free.
	zeroBlock := make([]byte, BlockSize)
	for i := uint32(1); i <= numInodeBlocks; i++ {
		if err := dev.WriteSector(i, zeroBlock); err != nil {
			return err
		}
	}

	return dev.Sync()
}

// Mount opens the image at `path`, validates it, reconstructs the block
// allocator from the inode table, and returns a live session. On any
// failure the device is closed before returning.
func Mount(path string) (*FileSystem, error) {
	dev, err := vdisk.Open(path)
	if err != nil {
		return nil, err
	}

	fs, err := MountDevice(dev, path)
	if err != nil {
		if closeErr := dev.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return nil, err
	}
	return fs, nil
}

// MountDevice mounts an already-open device. The session takes ownership of
// the handle: a successful mount means [FileSystem.Unmount] closes it.
func MountDevice(dev *vdisk.Device, diskName string) (*FileSystem, error) {
	blockBuffer := make([]byte, BlockSize)
	if err := dev.ReadSector(0, blockBuffer); err != nil {
		return nil, err
	}

	sb, err := deserializeSuperblock(blockBuffer)
	if err != nil {
		return nil, err
	}
	if err := sb.Validate(dev.SizeInSectors()); err != nil {
		return nil, err
	}

	fs := &FileSystem{
		dev:        dev,
		superblock: sb,
		alloc:      NewAllocator(sb.NumBlocks, sb.NumInodeBlocks),
		diskName:   diskName,
	}

	if err := fs.reconstructBitmap(); err != nil {
		return nil, err
	}

	fs.mounted = true
	return fs, nil
}

// reconstructBitmap walks every valid inode's pointer graph and marks each
// reachable block as used. This is the only source of free-block state; the
// on-disk format stores no allocation bitmap.
func (fs *FileSystem) reconstructBitmap() error {
	page := make([]byte, BlockSize)
	innerPage := make([]byte, BlockSize)

	for i := 0; i < int(fs.superblock.TotalInodes()); i++ {
		ino, err := fs.readInode(i, true)
		if err != nil {
			return err
		}
		if !ino.IsAllocated() {
			continue
		}

		for _, block := range ino.DirectBlocks {
			if block != 0 {
				fs.alloc.Mark(block)
			}
		}

		if ino.IndirectBlock != 0 {
			fs.alloc.Mark(ino.IndirectBlock)
			if err := fs.dev.ReadSector(ino.IndirectBlock, page); err != nil {
				return err
			}
			for k := 0; k < PointersPerBlock; k++ {
				if entry := pointerAt(page, k); entry != 0 {
					fs.alloc.Mark(entry)
				}
			}
		}

		if ino.DoubleIndirect != 0 {
			fs.alloc.Mark(ino.DoubleIndirect)
			if err := fs.dev.ReadSector(ino.DoubleIndirect, page); err != nil {
				return err
			}
			for j := 0; j < PointersPerBlock; j++ {
				indirect := pointerAt(page, j)
				if indirect == 0 {
					continue
				}
				fs.alloc.Mark(indirect)
				if err := fs.dev.ReadSector(indirect, innerPage); err != nil {
					return err
				}
				for k := 0; k < PointersPerBlock; k++ {
					if entry := pointerAt(innerPage, k); entry != 0 {
						fs.alloc.Mark(entry)
					}
				}
			}
		}
	}

	return nil
}

// Unmount flushes pending writes, closes the device, and invalidates the
// session. Sync and close failures are both reported.
func (fs *FileSystem) Unmount() error {
	if !fs.mounted {
		return errors.ErrDiskNotMounted
	}

	// Clean up even when sync fails; the session is done either way.
	var result *multierror.Error
	if err := fs.dev.Sync(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fs.dev.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	fs.mounted = false
	fs.alloc = nil
	fs.diskName = ""

	return result.ErrorOrNil()
}
