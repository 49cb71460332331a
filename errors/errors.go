// Package errors defines the error set shared by every part of the file
// system: sentinel errors for each failure class, helpers for attaching
// context to them, and the mapping to the classic negative integer codes
// used at the compatibility boundary.
package errors

import "fmt"

// Error is a sentinel error. Failures of the file system operations and the
// device layer either are an Error or wrap one, so callers can classify them
// with [errors.Is]. Helpers outside that path (the disks profile registry,
// an invalid seek origin on a file stream) return plain errors.
type Error string

// State errors.
const ErrDiskNotMounted = Error("Disk not mounted")
const ErrDiskAlreadyMounted = Error("Disk already mounted")

// Validation errors.
const ErrInvalidInode = Error("Invalid inode number")
const ErrInvalidOffset = Error("Invalid offset")

// Resource errors.
const ErrOutOfSpace = Error("No space left on disk")
const ErrOutOfInodes = Error("No free inodes")

// Integrity errors.
const ErrCorruptDisk = Error("Corrupt disk image")

// Device errors, forwarded unchanged from the vdisk layer.
const ErrNoDevice = Error("No such device")
const ErrAccessDenied = Error("Access denied")
const ErrNoImage = Error("Image file does not exist")
const ErrImageTooLarge = Error("Image size exceeded")
const ErrSectorOutOfRange = Error("Sector out of range")

func (e Error) Error() string {
	return string(e)
}

// WithMessage returns a new error that keeps `e` as its parent (for
// errors.Is) but reports `message` appended to the sentinel text.
func (e Error) WithMessage(message string) error {
	return wrappedError{
		message:  fmt.Sprintf("%s: %s", string(e), message),
		sentinel: e,
	}
}

// Wrap returns a new error with both `e` and `err` as parents, so
// errors.Is matches either one.
func (e Error) Wrap(err error) error {
	return wrappedError{
		message:  fmt.Sprintf("%s: %s", string(e), err.Error()),
		sentinel: e,
		cause:    err,
	}
}

// -----------------------------------------------------------------------------

type wrappedError struct {
	message  string
	sentinel Error
	cause    error
}

func (e wrappedError) Error() string {
	return e.message
}

func (e wrappedError) Unwrap() error {
	return e.cause
}

func (e wrappedError) Is(target error) bool {
	return target == e.sentinel
}
