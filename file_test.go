package ssfs_test

import (
	"io"
	"testing"

	"github.com/ssfs-io/ssfs"
	"github.com/ssfs-io/ssfs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileRequiresAllocatedInode(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	_, err := fs.OpenFile(0)
	assert.ErrorIs(t, err, errors.ErrInvalidInode)

	inodeNum, err := fs.Create()
	require.NoError(t, err)

	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)
	assert.Equal(t, inodeNum, file.InodeNum())
}

func TestFileStreamReadWrite(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)

	n, err := file.WriteString("hello ")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = file.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 11, file.Tell())

	size, err := file.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	// Rewind and read everything back through the stream interface.
	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)

	contents, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), contents)
}

func TestFileStreamSeek(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)

	_, err = file.WriteString("0123456789")
	require.NoError(t, err)

	pos, err := file.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 6, pos)

	buf := make([]byte, 4)
	n, err := file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("6789"), buf)

	// The next read is at EOF.
	_, err = file.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	pos, err = file.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 12, pos)

	_, err = file.Seek(-100, io.SeekStart)
	assert.ErrorIs(t, err, errors.ErrInvalidOffset)

	_, err = file.Seek(0, 42)
	assert.Error(t, err)
}

func TestFileStreamSeekPastEndThenWrite(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)

	_, err = file.Seek(2000, io.SeekStart)
	require.NoError(t, err)

	n, err := file.Write([]byte("end"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, err := file.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 2003, size, "the gap was zero-filled by the write")

	readBack := make([]byte, 3)
	n, err = file.ReadAt(readBack, 2000)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("end"), readBack)
}

func TestFileStreamReadAtReportsEOF(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)

	_, err = file.WriteString("abc")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := file.ReadAt(buf, 0)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileStreamAfterUnmount(t *testing.T) {
	path := newTestImageFile(t, 100, 10)
	fs, err := ssfs.Mount(path)
	require.NoError(t, err)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	file, err := fs.OpenFile(inodeNum)
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	_, err = file.Write([]byte("too late"))
	assert.ErrorIs(t, err, errors.ErrDiskNotMounted)
	assert.ErrorIs(t, file.Close(), errors.ErrDiskNotMounted)
}
