package mzip

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// trailerSearchWindow bounds the backward scan for the end-of-central-directory
// record. The record is 22 bytes plus a comment of up to 64 KiB - 1, so any
// valid archive has its trailer within the last 64 KiB.
const trailerSearchWindow = 64 << 10

// readDirectory populates the entry table from the archive's central
// directory. Payload bytes are not touched; entries stay disk-backed until
// extracted.
func (a *Archive) readDirectory() error {
	end, endOffset, err := a.findEndOfCentralDir()
	if err != nil {
		return err
	}

	if end.diskNumber != 0 || end.dirDiskNumber != 0 {
		return errors.Wrap(ErrFormat, "multi-disk archives are not supported")
	}

	dirStart := int64(end.centralDirStart)
	dirSize := int64(end.centralDirSize)
	if dirStart+dirSize > endOffset {
		return errors.Wrapf(ErrFormat, "central directory [%d, %d) lies outside the archive", dirStart, dirStart+dirSize)
	}

	dir := bufio.NewReader(io.NewSectionReader(a.file, dirStart, dirSize))

	entries := make([]*Entry, 0, end.totalEntries)
	for i := 0; i < int(end.totalEntries); i++ {
		record, err := readCentralDirEntry(dir)
		if err != nil {
			return errors.Wrapf(err, "ERROR: could not read central directory entry %d", i)
		}

		if int64(record.headerOffset) >= dirStart {
			return errors.Wrapf(ErrFormat, "entry %s: local header offset %d inside central directory", record.name, record.headerOffset)
		}

		modified := dosToTime(record.modDate, record.modTime)
		if ts, ok := parseExtendedTimestamp(record.extra); ok {
			modified = ts
		}

		entries = append(entries, &Entry{
			Name:             record.name,
			CompressedSize:   record.compressedSize,
			UncompressedSize: record.uncompressedSize,
			CRC32:            record.crc32,
			Method:           Method(record.method),
			Modified:         modified,
			payload:          &diskPayload{headerOffset: int64(record.headerOffset)},
		})
	}

	// A trailing record here means the trailer's entry count undersold the
	// directory; treat the mismatch as corruption.
	if _, err := dir.ReadByte(); err != io.EOF {
		return errors.Wrap(ErrFormat, "central directory size does not match entry count")
	}

	a.entries = entries
	return nil
}

// findEndOfCentralDir scans backward through the archive's tail for the
// end-of-central-directory record. Returns the decoded record and its offset.
func (a *Archive) findEndOfCentralDir() (endOfCentralDir, int64, error) {
	if a.size < endOfCentralDirLen {
		return endOfCentralDir{}, 0, errors.Wrap(ErrFormat, "file too small")
	}

	windowSize := min64(trailerSearchWindow, a.size)
	windowStart := a.size - windowSize

	window := make([]byte, windowSize)
	if _, err := a.file.ReadAt(window, windowStart); err != nil && err != io.EOF {
		return endOfCentralDir{}, 0, errors.Wrap(err, "ERROR: could not read archive trailer")
	}

	for p := len(window) - endOfCentralDirLen; p >= 0; p-- {
		if binary.LittleEndian.Uint32(window[p:p+4]) != endOfCentralDirSignature {
			continue
		}

		end := decodeEndOfCentralDir(window[p : p+endOfCentralDirLen])

		// The comment must run exactly to the end of the file, otherwise the
		// signature was a payload coincidence.
		offset := windowStart + int64(p)
		if offset+endOfCentralDirLen+int64(end.commentLen) != a.size {
			continue
		}

		return end, offset, nil
	}

	return endOfCentralDir{}, 0, errors.Wrap(ErrFormat, "no end of central directory record")
}

// readSegment returns an entry's raw (still compressed) payload bytes,
// validating the local header against the central directory's copy.
func (a *Archive) readSegment(e *Entry, headerOffset int64) ([]byte, error) {
	src := bufio.NewReader(io.NewSectionReader(a.file, headerOffset, a.size-headerOffset))

	header, err := readLocalHeader(src)
	if err != nil {
		return nil, errors.Wrapf(err, "ERROR: could not read local header of %s", e.Name)
	}

	if header.name != e.Name {
		return nil, errors.Wrapf(ErrFormat, "local header name %q does not match central directory name %q", header.name, e.Name)
	}

	// Streamed entries defer sizes and CRC to a trailing data descriptor and
	// leave the local header fields zero, so only compare when they are set.
	if header.flags&dataDescriptorFlag == 0 {
		if header.compressedSize != e.CompressedSize || header.uncompressedSize != e.UncompressedSize {
			return nil, errors.Wrapf(ErrFormat, "local header sizes of %s do not match central directory", e.Name)
		}
	}

	compressed := make([]byte, e.CompressedSize)
	if _, err := io.ReadFull(src, compressed); err != nil {
		return nil, errors.Wrapf(ErrFormat, "short payload for %s: %v", e.Name, err)
	}

	return compressed, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
