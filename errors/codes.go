package errors

import "errors"

// Integer codes returned by the compatibility wrapper and printed by the
// CLI. Positive returns are byte counts or inode numbers; every error maps
// to one of these small negative values.
const (
	EDiskNotMounted     = -100
	EDiskAlreadyMounted = -101
	EInvalidInode       = -102
	EOutOfSpace         = -103
	EOutOfInodes        = -104
	ECorruptDisk        = -105
	EInvalidOffset      = -106
)

// Device-level codes, one per vdisk failure class.
const (
	ENoDevice         = -1
	EAccessDenied     = -2
	ENoImage          = -3
	EImageTooLarge    = -4
	ESectorOutOfRange = -5
)

// EUnknown is returned for errors that do not wrap any sentinel. It should
// never appear in practice.
const EUnknown = -126

var codeTable = []struct {
	sentinel Error
	code     int
}{
	{ErrDiskNotMounted, EDiskNotMounted},
	{ErrDiskAlreadyMounted, EDiskAlreadyMounted},
	{ErrInvalidInode, EInvalidInode},
	{ErrOutOfSpace, EOutOfSpace},
	{ErrOutOfInodes, EOutOfInodes},
	{ErrCorruptDisk, ECorruptDisk},
	{ErrInvalidOffset, EInvalidOffset},
	{ErrNoDevice, ENoDevice},
	{ErrAccessDenied, EAccessDenied},
	{ErrNoImage, ENoImage},
	{ErrImageTooLarge, EImageTooLarge},
	{ErrSectorOutOfRange, ESectorOutOfRange},
}

// Code converts an error to its integer code. A nil error converts to 0.
func Code(err error) int {
	if err == nil {
		return 0
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.sentinel) {
			return entry.code
		}
	}
	return EUnknown
}
