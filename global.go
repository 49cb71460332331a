// The classic integer-code API of the original design: one process-wide
// mounted session, negative error codes, non-negative counts and inode
// numbers. New code should prefer the session API ([Mount], [FileSystem]);
// this wrapper exists for callers that want the original calling
// convention.

package ssfs

import (
	"github.com/ssfs-io/ssfs/errors"
)

var currentSession *FileSystem

// CurrentSession exposes the wrapper's mounted session, or nil when no disk
// is mounted.
func CurrentSession() *FileSystem {
	return currentSession
}

func mountedSession() (*FileSystem, bool) {
	if currentSession == nil || !currentSession.mounted {
		return nil, false
	}
	return currentSession, true
}

// FormatDisk formats the image at diskName. Returns 0 on success or a
// negative error code. Fails when a disk is mounted through this wrapper.
func FormatDisk(diskName string, inodes int) int {
	if _, ok := mountedSession(); ok {
		return errors.EDiskAlreadyMounted
	}
	return errors.Code(Format(diskName, inodes))
}

// MountDisk mounts the image at diskName as the process-wide session.
func MountDisk(diskName string) int {
	if _, ok := mountedSession(); ok {
		return errors.EDiskAlreadyMounted
	}

	fs, err := Mount(diskName)
	if err != nil {
		return errors.Code(err)
	}
	currentSession = fs
	return 0
}

// UnmountDisk unmounts the process-wide session.
func UnmountDisk() int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}

	code := errors.Code(fs.Unmount())
	currentSession = nil
	return code
}

// CreateFile allocates a new file and returns its inode number, or a
// negative error code.
func CreateFile() int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}

	inodeNum, err := fs.Create()
	if err != nil {
		return errors.Code(err)
	}
	return inodeNum
}

// DeleteFile removes a file and releases its blocks.
func DeleteFile(inodeNum int) int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}
	return errors.Code(fs.Delete(inodeNum))
}

// StatFile returns the size of a file in bytes, or a negative error code.
func StatFile(inodeNum int) int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}

	size, err := fs.Stat(inodeNum)
	if err != nil {
		return errors.Code(err)
	}
	return int(size)
}

// ReadFile reads up to length bytes at offset into buf and returns the
// byte count, or a negative error code.
func ReadFile(inodeNum int, buf []byte, length int, offset int) int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}
	if length > len(buf) {
		length = len(buf)
	}

	n, err := fs.Read(inodeNum, buf[:length], int64(offset))
	if err != nil {
		return errors.Code(err)
	}
	return n
}

// WriteFile writes length bytes of data at offset and returns the byte
// count, or a negative error code.
func WriteFile(inodeNum int, data []byte, length int, offset int) int {
	fs, ok := mountedSession()
	if !ok {
		return errors.EDiskNotMounted
	}
	if length > len(data) {
		length = len(data)
	}

	n, err := fs.Write(inodeNum, data[:length], int64(offset))
	if err != nil {
		return errors.Code(err)
	}
	return n
}
