package mzip

import (
	"encoding/binary"
	"time"
)

const extendedTimestampTag = 0x5455

// encodeExtendedTimestamp returns an extended timestamp extra field carrying
// the modification time in UTC, as defined in the zip specification (See 4.5.3
// https://pkware.cachefly.net/webdocs/casestudies/APPNOTE.TXT). DOS header
// times are local and two-second granular; other zip readers prefer this field
// when present.
func encodeExtendedTimestamp(modified time.Time) []byte {
	extraBuf := make([]byte, 0, 9) // 2*SizeOf(uint16) + SizeOf(uint8) + SizeOf(uint32)
	extraBuf = binary.LittleEndian.AppendUint16(extraBuf, extendedTimestampTag)
	extraBuf = binary.LittleEndian.AppendUint16(extraBuf, 5) // block size
	extraBuf = append(extraBuf, uint8(1))                    // flags: mod time only
	extraBuf = binary.LittleEndian.AppendUint32(extraBuf, uint32(modified.Unix()))
	return extraBuf
}

// parseExtendedTimestamp walks an extra field's tag-length-value blocks and
// returns the modification time if an extended timestamp block is present.
func parseExtendedTimestamp(extra []byte) (time.Time, bool) {
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		extra = extra[4:]

		if size > len(extra) {
			break
		}

		if tag == extendedTimestampTag && size >= 5 && extra[0]&0x1 != 0 {
			secs := binary.LittleEndian.Uint32(extra[1:5])
			return time.Unix(int64(secs), 0), true
		}

		extra = extra[size:]
	}

	return time.Time{}, false
}
