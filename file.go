// A file-like wrapper over a single inode, in the spirit of os.File. It
// layers stream semantics (a position, io interfaces) on top of the
// byte-range operations of the FileSystem session.

package ssfs

import (
	"fmt"
	"io"

	"github.com/ssfs-io/ssfs/errors"
)

// File is a stream view of one file on a mounted session. It is only valid
// while the session stays mounted.
type File struct {
	fs       *FileSystem
	inodeNum int
	position int64
}

// OpenFile returns a stream over an existing file. The inode must be
// allocated.
func (fs *FileSystem) OpenFile(inodeNum int) (*File, error) {
	if _, err := fs.Stat(inodeNum); err != nil {
		return nil, err
	}
	return &File{fs: fs, inodeNum: inodeNum}, nil
}

// InodeNum returns the inode the stream is bound to.
func (f *File) InodeNum() int {
	return f.inodeNum
}

// Size returns the current size of the file, in bytes.
func (f *File) Size() (int64, error) {
	size, err := f.fs.Stat(f.inodeNum)
	return int64(size), err
}

// Tell returns the current stream position.
func (f *File) Tell() int64 {
	return f.position
}

// Read implements [io.Reader]. It returns io.EOF once the position reaches
// the end of the file.
func (f *File) Read(buf []byte) (int, error) {
	n, err := f.ReadAt(buf, f.position)
	f.position += int64(n)
	return n, err
}

// ReadAt implements [io.ReaderAt].
func (f *File) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := f.fs.Read(f.inodeNum, buf, offset)
	if err != nil {
		return n, err
	}
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// Write implements [io.Writer].
func (f *File) Write(data []byte) (int, error) {
	n, err := f.WriteAt(data, f.position)
	f.position += int64(n)
	return n, err
}

// WriteAt implements [io.WriterAt]. A short write with no error means the
// write stopped partway through (a device error, a full disk, or the end of
// the addressable range); the returned count is trustworthy.
func (f *File) WriteAt(data []byte, offset int64) (int, error) {
	return f.fs.Write(f.inodeNum, data, offset)
}

// WriteString implements [io.StringWriter].
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Seek implements [io.Seeker]. Seeking past the end of the file is allowed;
// the gap is zero-filled by the first write beyond it.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var absolute int64

	switch whence {
	case io.SeekStart:
		absolute = offset
	case io.SeekCurrent:
		absolute = f.position + offset
	case io.SeekEnd:
		size, err := f.Size()
		if err != nil {
			return f.position, err
		}
		absolute = size + offset
	default:
		return f.position, fmt.Errorf("invalid seek origin: %d", whence)
	}

	if absolute < 0 {
		return f.position, errors.ErrInvalidOffset.WithMessage(
			fmt.Sprintf("seek result %d is negative", absolute),
		)
	}

	f.position = absolute
	return absolute, nil
}

// Sync flushes the underlying device.
func (f *File) Sync() error {
	if !f.fs.mounted {
		return errors.ErrDiskNotMounted
	}
	return f.fs.dev.Sync()
}

// Close detaches the stream. The file itself stays on disk; all pending
// writes are flushed.
func (f *File) Close() error {
	if !f.fs.mounted {
		return errors.ErrDiskNotMounted
	}
	return f.fs.dev.Sync()
}
