// Package testing provides fixtures shared by the file system tests:
// in-memory disk images and a fault-injecting stream for exercising
// partial-failure paths.
package testing

import (
	"io"
	"testing"

	"github.com/ssfs-io/ssfs/vdisk"
	"github.com/xaionaro-go/bytesextra"
)

// NewBlankImage returns the backing slice and a read-write-seekable stream
// over a zeroed image of `totalBlocks` blocks. Writes through the stream
// land in the returned slice, so tests can inspect raw bytes directly.
func NewBlankImage(t *testing.T, totalBlocks uint32) ([]byte, io.ReadWriteSeeker) {
	t.Helper()
	storage := make([]byte, int(totalBlocks)*vdisk.SectorSize)
	return storage, bytesextra.NewReadWriteSeeker(storage)
}

// NewBlankDevice returns a device over a fresh zeroed in-memory image,
// along with its backing slice.
func NewBlankDevice(t *testing.T, totalBlocks uint32) ([]byte, *vdisk.Device) {
	t.Helper()
	storage, stream := NewBlankImage(t, totalBlocks)
	return storage, vdisk.NewFromStream(stream, totalBlocks)
}

// NewDeviceOverSlice returns a second device handle over an existing image
// slice, for inspecting the same bytes through a fresh mount.
func NewDeviceOverSlice(t *testing.T, storage []byte) *vdisk.Device {
	t.Helper()
	return vdisk.NewFromStream(
		bytesextra.NewReadWriteSeeker(storage),
		uint32(len(storage)/vdisk.SectorSize),
	)
}

// FaultyStream wraps a stream and injects failures at configurable points.
// Counters at zero mean "never fail". With OneShot set, only the trigger
// operation fails and everything after it succeeds again, which is how real
// transient device errors look to the layers above.
type FaultyStream struct {
	Inner io.ReadWriteSeeker

	// FailOnWrite makes the Nth write attempt (1-based) fail when > 0.
	// Without OneShot, every later write fails too.
	FailOnWrite int

	// FailOnRead does the same for reads.
	FailOnRead int

	// OneShot limits the failure to the trigger operation alone.
	OneShot bool

	// Err is the error returned by failing operations.
	Err error

	writes int
	reads  int
}

func (s *FaultyStream) Read(p []byte) (int, error) {
	s.reads++
	if s.FailOnRead > 0 && s.shouldFail(s.reads, s.FailOnRead) {
		return 0, s.Err
	}
	return s.Inner.Read(p)
}

func (s *FaultyStream) Write(p []byte) (int, error) {
	s.writes++
	if s.FailOnWrite > 0 && s.shouldFail(s.writes, s.FailOnWrite) {
		return 0, s.Err
	}
	return s.Inner.Write(p)
}

func (s *FaultyStream) Seek(offset int64, whence int) (int64, error) {
	return s.Inner.Seek(offset, whence)
}

func (s *FaultyStream) shouldFail(count, trigger int) bool {
	if s.OneShot {
		return count == trigger
	}
	return count >= trigger
}

// Writes returns how many write attempts the stream has seen.
func (s *FaultyStream) Writes() int {
	return s.writes
}

// Reads returns how many read attempts the stream has seen.
func (s *FaultyStream) Reads() int {
	return s.reads
}
