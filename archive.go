package mzip

import (
	"bufio"
	"hash/crc32"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/mzip/pool"
)

// Mode selects how an archive is opened. The zero value opens read-only.
type Mode uint32

const (
	// ModeCreate opens a writable archive, creating it if missing. An existing
	// file is parsed and its entries kept, so closing appends to them.
	ModeCreate Mode = 1 << iota

	// ModeTruncate discards any existing content, leaving an empty entry
	// table. Only meaningful together with ModeCreate.
	ModeTruncate
)

// ModeRead opens an existing archive read-only.
const ModeRead Mode = 0

// Archive is a handle on one ZIP container. It owns the entry table and, for
// read paths, the backing file. A handle is single-use: open, read or mutate,
// close. It is not safe for concurrent use.
type Archive struct {
	path    string
	mode    Mode
	file    *os.File
	size    int64
	entries []*Entry

	codec       Codec
	level       int
	concurrency int
	strict      bool
	closed      bool
}

// Open opens the archive at path according to mode. In read-only mode the
// central directory is parsed eagerly but no payload bytes are read. In create
// modes nothing is written until Close.
func Open(path string, mode Mode, options ...option) (*Archive, error) {
	a := &Archive{
		path:        path,
		mode:        mode,
		level:       flate.DefaultCompression,
		concurrency: runtime.GOMAXPROCS(0),
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}
	if a.codec == nil {
		a.codec = newFlateCodec(a.level)
	}

	if mode&ModeCreate != 0 && mode&ModeTruncate != 0 {
		return a, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && mode&ModeCreate != 0 {
			return a, nil
		}
		return nil, errors.Wrapf(err, "ERROR: could not open archive at %s", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ERROR: could not stat archive at %s", path)
	}

	// An empty file opened for writing is a fresh archive, not a parse error.
	if info.Size() == 0 && mode&ModeCreate != 0 {
		file.Close()
		return a, nil
	}

	a.file = file
	a.size = info.Size()

	if err := a.readDirectory(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ERROR: could not parse archive at %s", path)
	}

	return a, nil
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns a metadata snapshot of every entry, in insertion order.
func (a *Archive) Entries() []Entry {
	entries := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		entries[i] = *e
		entries[i].payload = nil
	}
	return entries
}

// Entry returns a metadata snapshot of the entry at index i.
func (a *Archive) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(a.entries) {
		return Entry{}, errors.Wrapf(ErrIndexRange, "index %d of %d entries", i, len(a.entries))
	}
	e := *a.entries[i]
	e.payload = nil
	return e, nil
}

// Lookup returns the index of the first entry named name. Duplicate names are
// legal in zip archives; later entries shadow nothing here, matching the
// first-match convention of archive tools.
func (a *Archive) Lookup(name string) (int, bool) {
	for i, e := range a.entries {
		if e.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Extract returns the uncompressed bytes of the entry at index i. A CRC32
// mismatch is reported as ErrChecksum, but the decoded bytes are returned
// alongside it so callers can attempt best-effort recovery.
func (a *Archive) Extract(i int) ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if i < 0 || i >= len(a.entries) {
		return nil, errors.Wrapf(ErrIndexRange, "index %d of %d entries", i, len(a.entries))
	}

	e := a.entries[i]

	var compressed []byte
	switch p := e.payload.(type) {
	case *pendingPayload:
		// Not yet serialized; the uncompressed bytes are at hand.
		data := make([]byte, len(p.data))
		copy(data, p.data)
		return data, nil
	case *diskPayload:
		var err error
		compressed, err = a.readSegment(e, p.headerOffset)
		if err != nil {
			return nil, err
		}
	}

	var data []byte
	switch e.Method {
	case Store:
		data = compressed
	case Deflate:
		var err error
		data, err = a.codec.Decompress(compressed, int(e.UncompressedSize))
		if err != nil {
			return nil, errors.Wrapf(err, "ERROR: could not decompress %s", e.Name)
		}
	default:
		return nil, errors.Wrapf(ErrMethod, "entry %s uses method %d", e.Name, e.Method)
	}

	if crc32.ChecksumIEEE(data) != e.CRC32 {
		return data, errors.Wrapf(ErrChecksum, "entry %s", e.Name)
	}

	return data, nil
}

// Add appends a new entry holding data under name and returns its index. The
// archive takes ownership of data; the caller must not reuse the buffer. The
// entry defaults to deflate, which SetCompression can override until Close.
func (a *Archive) Add(name string, data []byte) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if a.mode&ModeCreate == 0 {
		return 0, ErrReadOnly
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	if a.strict {
		if _, exists := a.Lookup(name); exists {
			return 0, errors.Wrapf(ErrDuplicateEntry, "entry %s", name)
		}
	}

	a.entries = append(a.entries, &Entry{
		Name:             name,
		UncompressedSize: uint32(len(data)),
		CRC32:            crc32.ChecksumIEEE(data),
		Method:           Deflate,
		Modified:         time.Now(),
		payload:          &pendingPayload{data: data},
	})

	return len(a.entries) - 1, nil
}

// SetCompression changes the compression method of a pending entry. The
// transform itself is deferred to Close. Entries already on disk cannot change
// method; that would require an immediate rewrite, which Close performs once.
func (a *Archive) SetCompression(i int, method Method) error {
	if a.closed {
		return ErrClosed
	}
	if a.mode&ModeCreate == 0 {
		return ErrReadOnly
	}
	if i < 0 || i >= len(a.entries) {
		return errors.Wrapf(ErrIndexRange, "index %d of %d entries", i, len(a.entries))
	}
	if method != Store && method != Deflate {
		return errors.Wrapf(ErrMethod, "method %d", method)
	}

	e := a.entries[i]
	if _, ok := e.pending(); !ok {
		return errors.Wrapf(ErrFlushed, "entry %s", e.Name)
	}

	e.Method = method
	return nil
}

// Close releases the archive. For writable modes it serializes the whole
// archive to a temporary file and renames it over the target, so a failure
// mid-write never corrupts an existing archive. A second Close is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.mode&ModeCreate == 0 {
		return a.releaseFile()
	}

	flushErr := a.flush()
	if err := a.releaseFile(); err != nil && flushErr == nil {
		flushErr = err
	}

	return flushErr
}

func (a *Archive) releaseFile() error {
	if a.file == nil {
		return nil
	}
	file := a.file
	a.file = nil

	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "ERROR: could not close archive at %s", a.path)
	}
	return nil
}

// flush rewrites the entire archive: local segments in entry order, then the
// central directory and its trailer, into a temporary file that atomically
// replaces the target.
func (a *Archive) flush() (err error) {
	if err := a.compressPending(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".mzip-*")
	if err != nil {
		return errors.Wrapf(err, "ERROR: could not create temporary archive next to %s", a.path)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	out := bufio.NewWriter(tmp)
	records := make([]centralDirEntry, 0, len(a.entries))

	var offset int64
	for _, e := range a.entries {
		record, n, err := a.writeSegment(out, e, offset)
		if err != nil {
			return err
		}
		records = append(records, record)
		offset += n
	}

	dirStart := offset
	var dirSize int64
	for _, record := range records {
		encoded := record.encode()
		if _, err := out.Write(encoded); err != nil {
			return errors.Wrap(err, "ERROR: could not write central directory")
		}
		dirSize += int64(len(encoded))
	}

	if _, err := out.Write(encodeEndOfCentralDir(len(a.entries), uint32(dirSize), uint32(dirStart))); err != nil {
		return errors.Wrap(err, "ERROR: could not write end of central directory")
	}

	if err := out.Flush(); err != nil {
		return errors.Wrap(err, "ERROR: could not flush archive")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "ERROR: could not sync archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "ERROR: could not close temporary archive")
	}

	// The source file is only needed while disk-backed payloads are copied
	// over; release it before the rename replaces it.
	if err := a.releaseFile(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), a.path); err != nil {
		return errors.Wrapf(err, "ERROR: could not replace archive at %s", a.path)
	}

	return nil
}

// compressPending produces the compressed form of every pending payload,
// fanning the codec work across a worker pool. Writes stay sequential; only
// the byte transform is parallel.
func (a *Archive) compressPending() error {
	compressor := func(e *Entry) error {
		p, ok := e.pending()
		if !ok {
			return nil
		}

		switch e.Method {
		case Store:
			p.compressed = p.data
		case Deflate:
			compressed, err := a.codec.Compress(p.data)
			if err != nil {
				return errors.Wrapf(err, "ERROR: could not compress %s", e.Name)
			}
			p.compressed = compressed
		default:
			return errors.Wrapf(ErrMethod, "entry %s uses method %d", e.Name, e.Method)
		}

		e.CompressedSize = uint32(len(p.compressed))
		return nil
	}

	workers, err := pool.NewWorkerPool(compressor, &pool.Config{Concurrency: a.concurrency, Capacity: len(a.entries)})
	if err != nil {
		return errors.Wrap(err, "ERROR: could not create compression pool")
	}

	workers.Start()
	for _, e := range a.entries {
		workers.Enqueue(e)
	}

	if err := workers.Close(); err != nil {
		return err
	}

	return nil
}

// writeSegment writes one entry's local header and payload at offset and
// returns the matching central directory record and the bytes written.
func (a *Archive) writeSegment(out *bufio.Writer, e *Entry, offset int64) (centralDirEntry, int64, error) {
	var compressed []byte
	switch p := e.payload.(type) {
	case *pendingPayload:
		compressed = p.compressed
	case *diskPayload:
		// Already-flushed entries are copied verbatim, compressed form and
		// all; no recompression on append.
		var err error
		compressed, err = a.readSegment(e, p.headerOffset)
		if err != nil {
			return centralDirEntry{}, 0, err
		}
	}

	var flags uint16
	if _, require := detectUTF8(e.Name); require {
		flags |= utf8Flag
	}

	dosDate, dosTime := timeToDos(e.Modified)
	extra := encodeExtendedTimestamp(e.Modified)

	header := localHeader{
		readerVersion:    zipVersion20,
		flags:            flags,
		method:           uint16(e.Method),
		modTime:          dosTime,
		modDate:          dosDate,
		crc32:            e.CRC32,
		compressedSize:   e.CompressedSize,
		uncompressedSize: e.UncompressedSize,
		name:             e.Name,
		extra:            extra,
	}

	encoded := header.encode()
	if _, err := out.Write(encoded); err != nil {
		return centralDirEntry{}, 0, errors.Wrapf(err, "ERROR: could not write local header of %s", e.Name)
	}
	if _, err := out.Write(compressed); err != nil {
		return centralDirEntry{}, 0, errors.Wrapf(err, "ERROR: could not write payload of %s", e.Name)
	}

	e.payload = &diskPayload{headerOffset: offset}

	record := centralDirEntry{
		creatorVersion:   zipVersion20,
		readerVersion:    zipVersion20,
		flags:            flags,
		method:           uint16(e.Method),
		modTime:          dosTime,
		modDate:          dosDate,
		crc32:            e.CRC32,
		compressedSize:   e.CompressedSize,
		uncompressedSize: e.UncompressedSize,
		headerOffset:     uint32(offset),
		name:             e.Name,
		extra:            extra,
	}

	return record, int64(len(encoded)) + int64(len(compressed)), nil
}
