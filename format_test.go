package mzip

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/mzip/internal/testutils"
)

func TestDosTime(t *testing.T) {
	t.Run("round trips to two-second resolution", func(t *testing.T) {
		modified := time.Date(2024, time.March, 5, 14, 30, 12, 0, time.Local)

		dosDate, dosTime := timeToDos(modified)
		assert.Equal(t, modified, dosToTime(dosDate, dosTime))
	})

	t.Run("clamps pre-epoch times", func(t *testing.T) {
		dosDate, dosTime := timeToDos(time.Date(1974, time.June, 1, 0, 0, 0, 0, time.Local))

		got := dosToTime(dosDate, dosTime)
		assert.Equal(t, 1980, got.Year())
	})
}

func TestExtendedTimestamp(t *testing.T) {
	t.Run("round trips the modification time", func(t *testing.T) {
		modified := time.Unix(1700000000, 0)

		got, ok := parseExtendedTimestamp(encodeExtendedTimestamp(modified))
		assert.True(t, ok)
		assert.Equal(t, modified.Unix(), got.Unix())
	})

	t.Run("ignores unrelated extra fields", func(t *testing.T) {
		extra := []byte{0x50, 0x4b, 0x03, 0x00, 0xaa, 0xbb, 0xcc}

		_, ok := parseExtendedTimestamp(extra)
		assert.False(t, ok)
	})
}

func TestTrailerScan(t *testing.T) {
	t.Run("finds the trailer behind an archive comment", func(t *testing.T) {
		path := testutils.TempArchivePath(t)

		comment := "built by hand"
		trailer := make([]byte, endOfCentralDirLen+len(comment))
		binary.LittleEndian.PutUint32(trailer[0:4], endOfCentralDirSignature)
		binary.LittleEndian.PutUint16(trailer[20:22], uint16(len(comment)))
		copy(trailer[endOfCentralDirLen:], comment)

		assert.NoError(t, os.WriteFile(path, trailer, 0644))

		archive, err := Open(path, ModeRead)
		assert.NoError(t, err)
		defer archive.Close()

		assert.Equal(t, 0, archive.Len())
	})
}
