package mzip

import "time"

// Entry is one logical file record inside an Archive. The exported fields are
// a metadata snapshot; payload bytes are reached through Archive.Extract.
type Entry struct {
	Name             string
	CompressedSize   uint32
	UncompressedSize uint32
	CRC32            uint32
	Method           Method
	Modified         time.Time

	payload payload
}

// payload is the authoritative source of an entry's bytes. An entry is either
// disk-backed (parsed from an existing archive) or pending (added this session
// and not yet serialized), never both.
type payload interface {
	isPayload()
}

// diskPayload locates an entry's compressed bytes in the backing file, by the
// offset of its local header.
type diskPayload struct {
	headerOffset int64
}

func (*diskPayload) isPayload() {}

// pendingPayload owns an uncompressed buffer awaiting serialization. The
// compressed form is produced once, at close time.
type pendingPayload struct {
	data       []byte
	compressed []byte
}

func (*pendingPayload) isPayload() {}

func (e *Entry) pending() (*pendingPayload, bool) {
	p, ok := e.payload.(*pendingPayload)
	return p, ok
}
