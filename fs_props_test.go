package ssfs_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ssfs-io/ssfs"
	"github.com/ssfs-io/ssfs/errors"
	ssfstesting "github.com/ssfs-io/ssfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.New(rand.NewSource(0x55F5)).Read(buf)
	require.NoError(t, err)
	return buf
}

func TestFreshImageHasAllInodesFree(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	stat, err := fs.FSStat()
	require.NoError(t, err)
	assert.EqualValues(t, 32, stat.TotalInodes, "10 requested inodes round up to one block of 32")
	assert.EqualValues(t, 0, stat.UsedInodes)
	assert.EqualValues(t, 100, stat.TotalBlocks)
	assert.EqualValues(t, 98, stat.FreeBlocks, "only the superblock and inode block are used")
}

// Round-trips across every region of the block map: direct, the
// direct/indirect seam, and deep in the single-indirect range.
func TestRoundTripAcrossBlockMapRegions(t *testing.T) {
	cases := []struct {
		name   string
		offset int64
		length int
	}{
		{"inside first block", 100, 200},
		{"spanning two direct blocks", ssfs.BlockSize - 100, 200},
		{"direct/indirect seam", 4*ssfs.BlockSize - 512, ssfs.BlockSize},
		{"deep in the indirect region", 50 * ssfs.BlockSize, 3 * ssfs.BlockSize},
		{"unaligned everything", 3*ssfs.BlockSize + 17, 2*ssfs.BlockSize + 3},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			fs, _ := newTestFS(t, 512, 10)

			inodeNum, err := fs.Create()
			require.NoError(t, err)

			payload := randomBytes(t, testCase.length)
			n, err := fs.Write(inodeNum, payload, testCase.offset)
			require.NoError(t, err)
			require.Equal(t, testCase.length, n)

			size, err := fs.Stat(inodeNum)
			require.NoError(t, err)
			assert.EqualValues(t, testCase.offset+int64(testCase.length), size)

			readBack := make([]byte, testCase.length)
			n, err = fs.Read(inodeNum, readBack, testCase.offset)
			require.NoError(t, err)
			require.Equal(t, testCase.length, n)
			assert.Equal(t, payload, readBack)

			// Everything before the write reads back as zeros.
			if testCase.offset > 0 {
				gap := make([]byte, testCase.offset)
				n, err = fs.Read(inodeNum, gap, 0)
				require.NoError(t, err)
				require.EqualValues(t, testCase.offset, n)
				assert.Equal(t, make([]byte, testCase.offset), gap)
			}
		})
	}
}

func TestRoundTripInDoubleIndirectRegion(t *testing.T) {
	// Block index 260 is the first double-indirect block; writing there
	// materializes 260 data blocks for the gap plus three indirection
	// pages, so the image needs some headroom.
	fs, _ := newTestFS(t, 600, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)

	offset := int64((4 + ssfs.PointersPerBlock) * ssfs.BlockSize)
	payload := randomBytes(t, 2*ssfs.BlockSize)

	n, err := fs.Write(inodeNum, payload, offset)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	readBack := make([]byte, len(payload))
	n, err = fs.Read(inodeNum, readBack, offset)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, payload, readBack)

	size, err := fs.Stat(inodeNum)
	require.NoError(t, err)
	assert.EqualValues(t, offset+int64(len(payload)), size)
}

// The in-memory bitmap must always match what a fresh mount reconstructs
// from the on-disk pointer graph alone.
func TestBitmapMatchesFreshReconstruction(t *testing.T) {
	storage, dev := ssfstesting.NewBlankDevice(t, 512)
	require.NoError(t, ssfs.FormatDevice(dev, 10))
	fs, err := ssfs.MountDevice(dev, "memory.img")
	require.NoError(t, err)

	// A busy little history: files created, grown, shrunk, deleted.
	first, err := fs.Create()
	require.NoError(t, err)
	_, err = fs.Write(first, randomBytes(t, 10*ssfs.BlockSize), 0)
	require.NoError(t, err)

	second, err := fs.Create()
	require.NoError(t, err)
	_, err = fs.Write(second, randomBytes(t, 300), 7000)
	require.NoError(t, err)

	require.NoError(t, fs.Delete(first))

	third, err := fs.Create()
	require.NoError(t, err)
	_, err = fs.Write(third, randomBytes(t, 2*ssfs.BlockSize), 0)
	require.NoError(t, err)

	// Remount the same bytes through a second device handle.
	rebuilt, err := ssfs.MountDevice(
		ssfstesting.NewDeviceOverSlice(t, storage), "memory.img")
	require.NoError(t, err)

	live := fs.Allocator()
	fresh := rebuilt.Allocator()
	for block := uint32(0); block < 512; block++ {
		assert.Equal(
			t,
			fresh.InUse(block),
			live.InUse(block),
			"bitmap disagreement at block %d",
			block,
		)
	}
}

// Writes truncate at the end of the addressable range: bytes before the
// boundary land, the first out-of-range block reports the invalid offset.
func TestWriteAtAddressableBoundary(t *testing.T) {
	// The zero-fill to the end of the map materializes every block, so
	// this needs an image big enough for the whole addressable range plus
	// metadata and indirection pages.
	totalBlocks := uint32(ssfs.MaxFileSize/ssfs.BlockSize + 300)
	fs, _ := newTestFS(t, totalBlocks, 1)

	inodeNum, err := fs.Create()
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xC3}, ssfs.BlockSize)
	n, err := fs.Write(inodeNum, payload, ssfs.MaxFileSize-512)
	require.NoError(t, err, "partial progress reports a count, not an error")
	assert.Equal(t, 512, n, "only the bytes inside the addressable range land")

	size, err := fs.Stat(inodeNum)
	require.NoError(t, err)
	assert.EqualValues(t, ssfs.MaxFileSize, size)

	readBack := make([]byte, 512)
	n, err = fs.Read(inodeNum, readBack, ssfs.MaxFileSize-512)
	require.NoError(t, err)
	require.Equal(t, 512, n)
	assert.Equal(t, payload[:512], readBack)

	// Starting at the boundary, nothing can be written at all.
	_, err = fs.Write(inodeNum, payload[:1], ssfs.MaxFileSize)
	assert.ErrorIs(t, err, errors.ErrInvalidOffset)
}

func TestDeleteReleasesEntirePointerGraph(t *testing.T) {
	storage, dev := ssfstesting.NewBlankDevice(t, 600)
	require.NoError(t, ssfs.FormatDevice(dev, 10))
	fs, err := ssfs.MountDevice(dev, "memory.img")
	require.NoError(t, err)

	inodeNum, err := fs.Create()
	require.NoError(t, err)

	// Reach into the double-indirect region so the file owns direct
	// blocks, an indirect page, a double-indirect page, and inner pages.
	offset := int64((4 + ssfs.PointersPerBlock) * ssfs.BlockSize)
	_, err = fs.Write(inodeNum, randomBytes(t, ssfs.BlockSize), offset)
	require.NoError(t, err)

	require.NoError(t, fs.Delete(inodeNum))

	stat, err := fs.FSStat()
	require.NoError(t, err)
	assert.EqualValues(t, 600-2, stat.FreeBlocks,
		"everything but the superblock and inode block is free again")

	// A fresh reconstruction over the same bytes agrees.
	rebuilt, err := ssfs.MountDevice(
		ssfstesting.NewDeviceOverSlice(t, storage), "memory.img")
	require.NoError(t, err)
	for block := uint32(2); block < 600; block++ {
		assert.False(t, rebuilt.Allocator().InUse(block),
			"block %d still marked used after delete", block)
	}

	_, err = fs.Stat(inodeNum)
	assert.ErrorIs(t, err, errors.ErrInvalidInode)
}

func TestNegativeOffsetsAreRejected(t *testing.T) {
	fs, _ := newTestFS(t, 100, 10)

	inodeNum, err := fs.Create()
	require.NoError(t, err)

	_, err = fs.Read(inodeNum, make([]byte, 4), -1)
	assert.ErrorIs(t, err, errors.ErrInvalidOffset)

	_, err = fs.Write(inodeNum, make([]byte, 4), -1)
	assert.ErrorIs(t, err, errors.ErrInvalidOffset)
}

func TestSparseFilePersistsAcrossRemount(t *testing.T) {
	path := newTestImageFile(t, 100, 10)

	fs, err := ssfs.Mount(path)
	require.NoError(t, err)

	inodeNum, err := fs.Create()
	require.NoError(t, err)
	_, err = fs.Write(inodeNum, []byte("tail"), 3000)
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	fs, err = ssfs.Mount(path)
	require.NoError(t, err)
	defer fs.Unmount()

	size, err := fs.Stat(inodeNum)
	require.NoError(t, err)
	assert.EqualValues(t, 3004, size)

	buf := make([]byte, 3004)
	n, err := fs.Read(inodeNum, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 3004, n)
	assert.Equal(t, make([]byte, 3000), buf[:3000])
	assert.Equal(t, []byte("tail"), buf[3000:])
}
