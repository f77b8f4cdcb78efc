package mzip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/klauspost/compress/flate"

	"github.com/mzip/internal/testutils"
)

func TestFlateCodec(t *testing.T) {
	t.Run("round trips a buffer", func(t *testing.T) {
		codec := newFlateCodec(flate.DefaultCompression)
		original := bytes.Repeat([]byte("compressible text "), 512)

		compressed, err := codec.Compress(original)
		assert.NoError(t, err)
		assert.True(t, len(compressed) < len(original))

		decompressed, err := codec.Decompress(compressed, len(original))
		assert.NoError(t, err)
		assert.Equal(t, string(original), string(decompressed))
	})

	t.Run("fails on a corrupt stream", func(t *testing.T) {
		codec := newFlateCodec(flate.DefaultCompression)

		compressed, err := codec.Compress([]byte("soon to be mangled"))
		assert.NoError(t, err)
		for i := range compressed {
			compressed[i] ^= 0xa5
		}

		_, err = codec.Decompress(compressed, 18)
		assert.True(t, errors.Is(err, ErrCodec))
	})

	t.Run("handles an empty buffer", func(t *testing.T) {
		codec := newFlateCodec(flate.DefaultCompression)

		compressed, err := codec.Compress(nil)
		assert.NoError(t, err)

		decompressed, err := codec.Decompress(compressed, 0)
		assert.NoError(t, err)
		assert.Equal(t, 0, len(decompressed))
	})
}

// identityCodec stands in for deflate so the container format can be exercised
// without any real compression.
type identityCodec struct{}

func (identityCodec) Compress(p []byte) ([]byte, error) { return p, nil }

func (identityCodec) Decompress(p []byte, _ int) ([]byte, error) { return p, nil }

func TestCodecInjection(t *testing.T) {
	t.Run("uses the injected codec for both directions", func(t *testing.T) {
		path := testutils.TempArchivePath(t)

		archive, err := Open(path, ModeCreate|ModeTruncate, WithCodec(identityCodec{}))
		assert.NoError(t, err)
		_, err = archive.Add("plain.txt", []byte("no transform applied"))
		assert.NoError(t, err)
		assert.NoError(t, archive.Close())

		archive, err = Open(path, ModeRead, WithCodec(identityCodec{}))
		assert.NoError(t, err)
		defer archive.Close()

		entry, err := archive.Entry(0)
		assert.NoError(t, err)
		assert.Equal(t, entry.UncompressedSize, entry.CompressedSize)

		data, err := archive.Extract(0)
		assert.NoError(t, err)
		assert.Equal(t, "no transform applied", string(data))
	})
}
