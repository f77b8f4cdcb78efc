package mzip

import (
	"encoding/binary"
	"io"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Record signatures, per the PKWARE APPNOTE. Every record begins with the two
// byte marker "PK" followed by a record type.
const (
	localHeaderSignature     uint32 = 0x04034b50
	centralDirSignature      uint32 = 0x02014b50
	endOfCentralDirSignature uint32 = 0x06054b50
)

const (
	localHeaderLen     = 30 // fixed portion, before name and extra field
	centralDirEntryLen = 46
	endOfCentralDirLen = 22

	zipVersion20 = 20

	utf8Flag           = 0x800
	dataDescriptorFlag = 0x8
)

// Method is an entry's compression method.
type Method uint16

const (
	Store   Method = 0 // no transform, payload stored as-is
	Deflate Method = 8
)

func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	default:
		return "unknown"
	}
}

type localHeader struct {
	readerVersion    uint16
	flags            uint16
	method           uint16
	modTime          uint16
	modDate          uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	name             string
	extra            []byte
}

func (h localHeader) encode() []byte {
	buf := make([]byte, localHeaderLen+len(h.name)+len(h.extra))

	binary.LittleEndian.PutUint32(buf[0:4], localHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.readerVersion)
	binary.LittleEndian.PutUint16(buf[6:8], h.flags)
	binary.LittleEndian.PutUint16(buf[8:10], h.method)
	binary.LittleEndian.PutUint16(buf[10:12], h.modTime)
	binary.LittleEndian.PutUint16(buf[12:14], h.modDate)
	binary.LittleEndian.PutUint32(buf[14:18], h.crc32)
	binary.LittleEndian.PutUint32(buf[18:22], h.compressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.uncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(h.name)))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(h.extra)))

	copy(buf[localHeaderLen:], h.name)
	copy(buf[localHeaderLen+len(h.name):], h.extra)

	return buf
}

func readLocalHeader(src io.Reader) (localHeader, error) {
	var buf [localHeaderLen]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return localHeader{}, errors.Wrapf(ErrFormat, "short local header: %v", err)
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != localHeaderSignature {
		return localHeader{}, errors.Wrap(ErrFormat, "bad local header signature")
	}

	h := localHeader{
		readerVersion:    binary.LittleEndian.Uint16(buf[4:6]),
		flags:            binary.LittleEndian.Uint16(buf[6:8]),
		method:           binary.LittleEndian.Uint16(buf[8:10]),
		modTime:          binary.LittleEndian.Uint16(buf[10:12]),
		modDate:          binary.LittleEndian.Uint16(buf[12:14]),
		crc32:            binary.LittleEndian.Uint32(buf[14:18]),
		compressedSize:   binary.LittleEndian.Uint32(buf[18:22]),
		uncompressedSize: binary.LittleEndian.Uint32(buf[22:26]),
	}

	nameLen := binary.LittleEndian.Uint16(buf[26:28])
	extraLen := binary.LittleEndian.Uint16(buf[28:30])

	variable := make([]byte, int(nameLen)+int(extraLen))
	if _, err := io.ReadFull(src, variable); err != nil {
		return localHeader{}, errors.Wrapf(ErrFormat, "short local header name: %v", err)
	}
	h.name = string(variable[:nameLen])
	h.extra = variable[nameLen:]

	return h, nil
}

type centralDirEntry struct {
	creatorVersion   uint16
	readerVersion    uint16
	flags            uint16
	method           uint16
	modTime          uint16
	modDate          uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	diskNumber       uint16
	internalAttrs    uint16
	externalAttrs    uint32
	headerOffset     uint32
	name             string
	extra            []byte
	comment          string
}

func (d centralDirEntry) encode() []byte {
	buf := make([]byte, centralDirEntryLen+len(d.name)+len(d.extra)+len(d.comment))

	binary.LittleEndian.PutUint32(buf[0:4], centralDirSignature)
	binary.LittleEndian.PutUint16(buf[4:6], d.creatorVersion)
	binary.LittleEndian.PutUint16(buf[6:8], d.readerVersion)
	binary.LittleEndian.PutUint16(buf[8:10], d.flags)
	binary.LittleEndian.PutUint16(buf[10:12], d.method)
	binary.LittleEndian.PutUint16(buf[12:14], d.modTime)
	binary.LittleEndian.PutUint16(buf[14:16], d.modDate)
	binary.LittleEndian.PutUint32(buf[16:20], d.crc32)
	binary.LittleEndian.PutUint32(buf[20:24], d.compressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], d.uncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(d.name)))
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(d.extra)))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(d.comment)))
	binary.LittleEndian.PutUint16(buf[34:36], d.diskNumber)
	binary.LittleEndian.PutUint16(buf[36:38], d.internalAttrs)
	binary.LittleEndian.PutUint32(buf[38:42], d.externalAttrs)
	binary.LittleEndian.PutUint32(buf[42:46], d.headerOffset)

	offset := centralDirEntryLen
	offset += copy(buf[offset:], d.name)
	offset += copy(buf[offset:], d.extra)
	copy(buf[offset:], d.comment)

	return buf
}

func readCentralDirEntry(src io.Reader) (centralDirEntry, error) {
	var buf [centralDirEntryLen]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return centralDirEntry{}, errors.Wrapf(ErrFormat, "short central directory entry: %v", err)
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != centralDirSignature {
		return centralDirEntry{}, errors.Wrap(ErrFormat, "bad central directory signature")
	}

	d := centralDirEntry{
		creatorVersion:   binary.LittleEndian.Uint16(buf[4:6]),
		readerVersion:    binary.LittleEndian.Uint16(buf[6:8]),
		flags:            binary.LittleEndian.Uint16(buf[8:10]),
		method:           binary.LittleEndian.Uint16(buf[10:12]),
		modTime:          binary.LittleEndian.Uint16(buf[12:14]),
		modDate:          binary.LittleEndian.Uint16(buf[14:16]),
		crc32:            binary.LittleEndian.Uint32(buf[16:20]),
		compressedSize:   binary.LittleEndian.Uint32(buf[20:24]),
		uncompressedSize: binary.LittleEndian.Uint32(buf[24:28]),
		diskNumber:       binary.LittleEndian.Uint16(buf[34:36]),
		internalAttrs:    binary.LittleEndian.Uint16(buf[36:38]),
		externalAttrs:    binary.LittleEndian.Uint32(buf[38:42]),
		headerOffset:     binary.LittleEndian.Uint32(buf[42:46]),
	}

	nameLen := binary.LittleEndian.Uint16(buf[28:30])
	extraLen := binary.LittleEndian.Uint16(buf[30:32])
	commentLen := binary.LittleEndian.Uint16(buf[32:34])

	variable := make([]byte, int(nameLen)+int(extraLen)+int(commentLen))
	if _, err := io.ReadFull(src, variable); err != nil {
		return centralDirEntry{}, errors.Wrapf(ErrFormat, "short central directory name: %v", err)
	}
	d.name = string(variable[:nameLen])
	d.extra = variable[nameLen : int(nameLen)+int(extraLen)]
	d.comment = string(variable[int(nameLen)+int(extraLen):])

	return d, nil
}

type endOfCentralDir struct {
	diskNumber      uint16
	dirDiskNumber   uint16
	diskEntries     uint16
	totalEntries    uint16
	centralDirSize  uint32
	centralDirStart uint32
	commentLen      uint16
}

func encodeEndOfCentralDir(entries int, centralDirSize, centralDirStart uint32) []byte {
	buf := make([]byte, endOfCentralDirLen)

	binary.LittleEndian.PutUint32(buf[0:4], endOfCentralDirSignature)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(entries))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(entries))
	binary.LittleEndian.PutUint32(buf[12:16], centralDirSize)
	binary.LittleEndian.PutUint32(buf[16:20], centralDirStart)

	return buf
}

func decodeEndOfCentralDir(buf []byte) endOfCentralDir {
	return endOfCentralDir{
		diskNumber:      binary.LittleEndian.Uint16(buf[4:6]),
		dirDiskNumber:   binary.LittleEndian.Uint16(buf[6:8]),
		diskEntries:     binary.LittleEndian.Uint16(buf[8:10]),
		totalEntries:    binary.LittleEndian.Uint16(buf[10:12]),
		centralDirSize:  binary.LittleEndian.Uint32(buf[12:16]),
		centralDirStart: binary.LittleEndian.Uint32(buf[16:20]),
		commentLen:      binary.LittleEndian.Uint16(buf[20:22]),
	}
}

// timeToDos converts t to the MS-DOS date and time fields used by zip headers.
// DOS times have two-second resolution and no time zone.
func timeToDos(t time.Time) (dosDate, dosTime uint16) {
	if t.Year() < 1980 {
		return 0x21, 0 // 1980-01-01 00:00:00, the DOS epoch
	}
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return dosDate, dosTime
}

func dosToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9)+1980,
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f)*2,
		0,
		time.Local,
	)
}

// https://cs.opensource.google/go/go/+/refs/tags/go1.21.0:src/archive/zip/writer.go
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}
