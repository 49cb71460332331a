// Package vdisk provides sector-addressable access to a disk image. An
// image is a plain file (or any io.ReadWriteSeeker) whose length is a
// whole number of sectors; the file system above addresses it purely by
// sector number.
package vdisk

import (
	"fmt"
	"io"
	"os"

	"github.com/ssfs-io/ssfs/errors"
)

// SectorSize is the size of one device sector, in bytes. The file system's
// block size is the same value; the image length must be a multiple of it.
const SectorSize = 1024

// Device is a handle to an open disk image.
type Device struct {
	stream  io.ReadWriteSeeker
	file    *os.File // nil when backed by a plain stream
	sectors uint32
	path    string
}

// Open opens the image file at `path` for reading and writing. The file
// must already exist and its length must be a multiple of [SectorSize].
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNoImage.WithMessage(path)
		}
		if os.IsPermission(err) {
			return nil, errors.ErrAccessDenied.WithMessage(path)
		}
		return nil, errors.ErrNoDevice.Wrap(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.ErrNoDevice.Wrap(err)
	}
	if info.Size()%SectorSize != 0 {
		file.Close()
		return nil, errors.ErrCorruptDisk.WithMessage(
			fmt.Sprintf(
				"image size %d is not a multiple of the sector size %d",
				info.Size(),
				SectorSize,
			),
		)
	}

	return &Device{
		stream:  file,
		file:    file,
		sectors: uint32(info.Size() / SectorSize),
		path:    path,
	}, nil
}

// NewFromStream wraps any read-write-seekable stream as a device of
// `sectors` sectors. Useful for in-memory images.
func NewFromStream(stream io.ReadWriteSeeker, sectors uint32) *Device {
	return &Device{stream: stream, sectors: sectors}
}

// NewFromStreamWithInferredSize wraps a stream as a device, deriving the
// sector count from the stream length.
func NewFromStreamWithInferredSize(stream io.ReadWriteSeeker) (*Device, error) {
	end, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.ErrNoDevice.Wrap(err)
	}
	if _, err = stream.Seek(0, io.SeekStart); err != nil {
		return nil, errors.ErrNoDevice.Wrap(err)
	}
	if end%SectorSize != 0 {
		return nil, errors.ErrCorruptDisk.WithMessage(
			fmt.Sprintf(
				"stream size %d is not a multiple of the sector size %d",
				end,
				SectorSize,
			),
		)
	}
	return NewFromStream(stream, uint32(end/SectorSize)), nil
}

// SizeInSectors returns the total number of sectors on the device.
func (dev *Device) SizeInSectors() uint32 {
	return dev.sectors
}

// Path returns the image path the device was opened from, or "" for
// stream-backed devices.
func (dev *Device) Path() string {
	return dev.path
}

func (dev *Device) seekToSector(sector uint32) error {
	if sector >= dev.sectors {
		return errors.ErrSectorOutOfRange.WithMessage(
			fmt.Sprintf("sector %d not in [0, %d)", sector, dev.sectors),
		)
	}
	_, err := dev.stream.Seek(int64(sector)*SectorSize, io.SeekStart)
	if err != nil {
		return errors.ErrNoDevice.Wrap(err)
	}
	return nil
}

// ReadSector fills `buf` with the contents of one sector. `buf` must be
// exactly [SectorSize] bytes.
func (dev *Device) ReadSector(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return errors.ErrSectorOutOfRange.WithMessage(
			fmt.Sprintf("buffer must be %d bytes, got %d", SectorSize, len(buf)),
		)
	}
	if err := dev.seekToSector(sector); err != nil {
		return err
	}
	if _, err := io.ReadFull(dev.stream, buf); err != nil {
		return errors.ErrNoDevice.Wrap(err)
	}
	return nil
}

// WriteSector writes one full sector from `buf`.
func (dev *Device) WriteSector(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return errors.ErrSectorOutOfRange.WithMessage(
			fmt.Sprintf("buffer must be %d bytes, got %d", SectorSize, len(buf)),
		)
	}
	if err := dev.seekToSector(sector); err != nil {
		return err
	}
	if _, err := dev.stream.Write(buf); err != nil {
		return errors.ErrNoDevice.Wrap(err)
	}
	return nil
}

// Sync flushes pending writes to stable storage. Stream-backed devices have
// nothing to flush.
func (dev *Device) Sync() error {
	if dev.file == nil {
		return nil
	}
	if err := dev.file.Sync(); err != nil {
		return errors.ErrNoDevice.Wrap(err)
	}
	return nil
}

// Close releases the device handle. The device must not be used afterward.
func (dev *Device) Close() error {
	if dev.file == nil {
		return nil
	}
	if err := dev.file.Close(); err != nil {
		return errors.ErrNoDevice.Wrap(err)
	}
	return nil
}
