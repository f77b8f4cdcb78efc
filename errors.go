package mzip

import "errors"

var (
	// ErrFormat is returned when the input is not a valid ZIP archive.
	ErrFormat = errors.New("mzip: not a valid zip archive")

	// ErrChecksum is returned when an entry's payload does not match its stored CRC32.
	// Extract still returns the decoded bytes alongside this error.
	ErrChecksum = errors.New("mzip: checksum mismatch")

	// ErrIndexRange is returned when an entry index is outside the entry table.
	ErrIndexRange = errors.New("mzip: entry index out of range")

	// ErrClosed is returned when an operation is attempted on a closed archive.
	ErrClosed = errors.New("mzip: archive is closed")

	// ErrReadOnly is returned when a mutation is attempted on a read-only archive.
	ErrReadOnly = errors.New("mzip: archive is read-only")

	// ErrFlushed is returned when changing the compression method of an entry
	// whose payload has already been written to disk.
	ErrFlushed = errors.New("mzip: entry already written to disk")

	// ErrDuplicateEntry is returned under the StrictNames policy when adding an
	// entry whose name is already present.
	ErrDuplicateEntry = errors.New("mzip: duplicate entry name")

	// ErrEmptyName is returned when adding an entry with an empty name.
	ErrEmptyName = errors.New("mzip: entry name must not be empty")

	// ErrMethod is returned when a compression method is not supported.
	ErrMethod = errors.New("mzip: unsupported compression method")

	// ErrCodec is returned when the underlying codec fails, typically on a
	// corrupt deflate stream.
	ErrCodec = errors.New("mzip: codec failure")
)
