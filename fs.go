package ssfs

import (
	"github.com/ssfs-io/ssfs/errors"
	"github.com/ssfs-io/ssfs/vdisk"
)

// FileSystem is one mounted session: the open device, the superblock, the
// reconstructed block allocator, and the image name. All operations are
// synchronous and non-reentrant; there is no internal locking.
type FileSystem struct {
	dev        *vdisk.Device
	superblock Superblock
	alloc      *Allocator
	diskName   string
	mounted    bool
}

// Superblock returns a copy of the mounted superblock.
func (fs *FileSystem) Superblock() Superblock {
	return fs.superblock
}

// DiskName returns the image path the session was mounted from.
func (fs *FileSystem) DiskName() string {
	return fs.diskName
}

// Mounted reports whether the session is still usable.
func (fs *FileSystem) Mounted() bool {
	return fs.mounted
}

// Allocator exposes the session's block allocator, mainly so callers and
// tests can compare live state against a fresh reconstruction.
func (fs *FileSystem) Allocator() *Allocator {
	return fs.alloc
}

// Create allocates the lowest-numbered free inode and returns its number.
// The new file is empty with every block pointer cleared.
func (fs *FileSystem) Create() (int, error) {
	if !fs.mounted {
		return 0, errors.ErrDiskNotMounted
	}

	maxInodes := int(fs.superblock.TotalInodes())
	for inodeNum := 0; inodeNum < maxInodes; inodeNum++ {
		ino, err := fs.readInode(inodeNum, false)
		if err != nil {
			return 0, err
		}
		if ino.IsAllocated() {
			continue
		}

		ino = Inode{Valid: 1}
		if err := fs.writeInode(inodeNum, &ino); err != nil {
			return 0, err
		}
		return inodeNum, nil
	}

	return 0, errors.ErrOutOfInodes
}

// Delete releases every block a file references, then frees its inode.
// Deleting an inode that is already free fails with ErrInvalidInode.
//
// A device error while reading an indirection page aborts the walk and can
// leave the inode partially freed; the blocks released so far stay free in
// the in-memory bitmap. The next mount rediscovers whatever pointers remain
// on disk.
func (fs *FileSystem) Delete(inodeNum int) error {
	if !fs.mounted {
		return errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return err
	}

	ino, err := fs.readInode(inodeNum, false)
	if err != nil {
		return err
	}
	if !ino.IsAllocated() {
		return errors.ErrInvalidInode.WithMessage("inode is already free")
	}

	for i := range ino.DirectBlocks {
		if ino.DirectBlocks[i] != 0 {
			fs.alloc.Release(ino.DirectBlocks[i])
			ino.DirectBlocks[i] = 0
		}
	}

	if ino.IndirectBlock != 0 {
		if err := fs.releasePage(ino.IndirectBlock); err != nil {
			return err
		}
		ino.IndirectBlock = 0
	}

	if ino.DoubleIndirect != 0 {
		page := make([]byte, BlockSize)
		if err := fs.dev.ReadSector(ino.DoubleIndirect, page); err != nil {
			return err
		}
		for i := 0; i < PointersPerBlock; i++ {
			if entry := pointerAt(page, i); entry != 0 {
				if err := fs.releasePage(entry); err != nil {
					return err
				}
			}
		}
		fs.alloc.Release(ino.DoubleIndirect)
		ino.DoubleIndirect = 0
	}

	ino.Valid = 0
	ino.Size = 0
	return fs.writeInode(inodeNum, &ino)
}

// releasePage frees every block an indirection page points to, then the
// page itself.
func (fs *FileSystem) releasePage(pageBlock uint32) error {
	page := make([]byte, BlockSize)
	if err := fs.dev.ReadSector(pageBlock, page); err != nil {
		return err
	}
	for i := 0; i < PointersPerBlock; i++ {
		if entry := pointerAt(page, i); entry != 0 {
			fs.alloc.Release(entry)
		}
	}
	fs.alloc.Release(pageBlock)
	return nil
}

// Stat returns the size of a file in bytes.
func (fs *FileSystem) Stat(inodeNum int) (uint32, error) {
	if !fs.mounted {
		return 0, errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return 0, err
	}

	ino, err := fs.readInode(inodeNum, false)
	if err != nil {
		return 0, err
	}
	if !ino.IsAllocated() {
		return 0, errors.ErrInvalidInode.WithMessage("inode is free")
	}
	return ino.Size, nil
}

// Read copies up to len(buf) bytes of the file into buf, starting at the
// given byte offset, and returns the number of bytes read. Reading at or
// past the end of the file returns 0. A hole in the block map or an
// unreadable indirection page ends the read early with the count so far; a
// device error on a data block returns the count so far when nonzero, the
// error otherwise.
func (fs *FileSystem) Read(inodeNum int, buf []byte, offset int64) (int, error) {
	if !fs.mounted {
		return 0, errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, errors.ErrInvalidOffset
	}

	ino, err := fs.readInode(inodeNum, false)
	if err != nil {
		return 0, err
	}
	if !ino.IsAllocated() {
		return 0, errors.ErrInvalidInode.WithMessage("inode is free")
	}

	bytesToRead := 0
	if offset < int64(ino.Size) {
		bytesToRead = int(int64(ino.Size) - offset)
		if bytesToRead > len(buf) {
			bytesToRead = len(buf)
		}
	}
	if bytesToRead <= 0 {
		return 0, nil
	}

	bytesRead := 0
	currentOffset := offset
	block := make([]byte, BlockSize)

	for bytesRead < bytesToRead {
		blockOffset := int(currentOffset % BlockSize)
		blockNum, err := fs.blockForOffset(&ino, currentOffset, false)
		if err != nil || blockNum == 0 {
			// Hole, or an unreadable indirection page. Either way the read
			// cannot make further progress.
			break
		}

		if err := fs.dev.ReadSector(blockNum, block); err != nil {
			if bytesRead > 0 {
				return bytesRead, nil
			}
			return 0, err
		}

		bytesToCopy := BlockSize - blockOffset
		if bytesToCopy > bytesToRead-bytesRead {
			bytesToCopy = bytesToRead - bytesRead
		}

		copy(buf[bytesRead:], block[blockOffset:blockOffset+bytesToCopy])
		bytesRead += bytesToCopy
		currentOffset += int64(bytesToCopy)
	}

	return bytesRead, nil
}

// Write stores len(data) bytes at the given byte offset, allocating blocks
// on demand, and returns the number of bytes written. A write starting past
// the current end of the file first zero-fills the gap.
//
// On a mid-operation failure the inode size is persisted to cover every
// byte actually on disk, and the byte count so far is returned when it is
// nonzero; the error is returned only when nothing was written.
func (fs *FileSystem) Write(inodeNum int, data []byte, offset int64) (int, error) {
	if !fs.mounted {
		return 0, errors.ErrDiskNotMounted
	}
	if err := fs.checkInodeNum(inodeNum); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, errors.ErrInvalidOffset
	}

	ino, err := fs.readInode(inodeNum, false)
	if err != nil {
		return 0, err
	}
	if !ino.IsAllocated() {
		return 0, errors.ErrInvalidInode.WithMessage("inode is free")
	}

	originalSize := ino.Size

	// Zero-fill the gap when writing past the current end of the file.
	if offset > int64(ino.Size) {
		if err := fs.zeroFill(inodeNum, &ino, offset); err != nil {
			return 0, err
		}
		ino.Size = uint32(offset)
	}

	bytesWritten := 0
	currentOffset := offset
	block := make([]byte, BlockSize)

	// persistProgress records the furthest byte now on disk before an early
	// return.
	persistProgress := func() {
		if currentOffset > int64(ino.Size) {
			ino.Size = uint32(currentOffset)
		}
		if ino.Size != originalSize {
			fs.writeInode(inodeNum, &ino)
		}
	}

	for bytesWritten < len(data) {
		blockOffset := int(currentOffset % BlockSize)
		blockNum, err := fs.blockForOffset(&ino, currentOffset, true)
		if err != nil {
			persistProgress()
			if bytesWritten > 0 {
				return bytesWritten, nil
			}
			return 0, err
		}

		bytesToWrite := BlockSize - blockOffset
		if bytesToWrite > len(data)-bytesWritten {
			bytesToWrite = len(data) - bytesWritten
		}

		// Partial blocks are read-modify-written to preserve existing bytes.
		if blockOffset > 0 || bytesToWrite < BlockSize {
			if err := fs.dev.ReadSector(blockNum, block); err != nil {
				persistProgress()
				if bytesWritten > 0 {
					return bytesWritten, nil
				}
				return 0, err
			}
		}

		copy(block[blockOffset:], data[bytesWritten:bytesWritten+bytesToWrite])

		if err := fs.dev.WriteSector(blockNum, block); err != nil {
			persistProgress()
			if bytesWritten > 0 {
				return bytesWritten, nil
			}
			return 0, err
		}

		bytesWritten += bytesToWrite
		currentOffset += int64(bytesToWrite)
	}

	// Persist the new size if the write extended the file. If only this
	// final inode update fails, the data is on disk regardless; report the
	// full count.
	if currentOffset > int64(ino.Size) {
		ino.Size = uint32(currentOffset)
	}
	if ino.Size != originalSize {
		fs.writeInode(inodeNum, &ino)
	}

	return bytesWritten, nil
}

// zeroFill materializes zeros over [ino.Size, end), block by block. On
// failure the inode size is advanced to the furthest filled offset and
// persisted before the error is returned.
func (fs *FileSystem) zeroFill(inodeNum int, ino *Inode, end int64) error {
	block := make([]byte, BlockSize)

	persistProgress := func(currOffset int64) {
		if currOffset > int64(ino.Size) {
			ino.Size = uint32(currOffset)
		}
		fs.writeInode(inodeNum, ino)
	}

	for currOffset := int64(ino.Size); currOffset < end; {
		blockOffset := int(currOffset % BlockSize)
		blockNum, err := fs.blockForOffset(ino, currOffset, true)
		if err != nil {
			persistProgress(currOffset)
			return err
		}

		bytesToFill := BlockSize - blockOffset
		if int64(bytesToFill) > end-currOffset {
			bytesToFill = int(end - currOffset)
		}

		// A freshly allocated block is already zeroed on disk; only a
		// partially-covered block has bytes worth preserving.
		if blockOffset > 0 || bytesToFill < BlockSize {
			if err := fs.dev.ReadSector(blockNum, block); err != nil {
				persistProgress(currOffset)
				return err
			}
		} else {
			for i := range block {
				block[i] = 0
			}
		}

		for i := blockOffset; i < blockOffset+bytesToFill; i++ {
			block[i] = 0
		}

		if err := fs.dev.WriteSector(blockNum, block); err != nil {
			persistProgress(currOffset)
			return err
		}

		currOffset += int64(bytesToFill)
	}

	return nil
}

// FSStat is a point-in-time summary of a mounted image.
type FSStat struct {
	BlockSize   uint32
	TotalBlocks uint32
	FreeBlocks  uint32
	TotalInodes uint32
	UsedInodes  uint32
}

// FSStat scans the inode table and reports image usage.
func (fs *FileSystem) FSStat() (FSStat, error) {
	if !fs.mounted {
		return FSStat{}, errors.ErrDiskNotMounted
	}

	used := uint32(0)
	for i := 0; i < int(fs.superblock.TotalInodes()); i++ {
		ino, err := fs.readInode(i, false)
		if err != nil {
			return FSStat{}, err
		}
		if ino.IsAllocated() {
			used++
		}
	}

	return FSStat{
		BlockSize:   BlockSize,
		TotalBlocks: fs.superblock.NumBlocks,
		FreeBlocks:  fs.alloc.FreeCount(),
		TotalInodes: fs.superblock.TotalInodes(),
		UsedInodes:  used,
	}, nil
}
