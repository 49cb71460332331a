// Package ssfs implements the Simple Sequential File System: a single-user,
// flat file system laid out over a fixed-size block device image. Files are
// identified by integer inode numbers; each inode maps its bytes to data
// blocks through four direct pointers, a single-indirect page, and a
// double-indirect page.
//
// A mounted image is represented by a [FileSystem] session obtained from
// [Mount] or [MountDevice]. The package also exposes the classic
// integer-code API of the original design (see global.go) for callers that
// want the process-wide singleton behavior.
package ssfs
