package mzip

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Codec performs the raw byte transforms for deflated entries. The archive
// treats it as a black box, so format logic can be tested against a synthetic
// codec and callers can swap in their own deflate implementation.
type Codec interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte, uncompressedSize int) ([]byte, error)
}

// flateCodec is the default Codec, backed by klauspost's deflate. Writers are
// pooled since resetting one is much cheaper than building its tables again.
type flateCodec struct {
	level   int
	writers sync.Pool
}

func newFlateCodec(level int) *flateCodec {
	return &flateCodec{
		level: level,
		writers: sync.Pool{
			New: func() any {
				w, _ := flate.NewWriter(io.Discard, level)
				return w
			},
		},
	}
}

func (c *flateCodec) Compress(p []byte) ([]byte, error) {
	w := c.writers.Get().(*flate.Writer)
	defer c.writers.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)

	if _, err := w.Write(p); err != nil {
		return nil, errors.Wrapf(ErrCodec, "deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrapf(ErrCodec, "close deflate stream: %v", err)
	}

	return buf.Bytes(), nil
}

func (c *flateCodec) Decompress(p []byte, uncompressedSize int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(p))
	defer r.Close()

	buf := bytes.NewBuffer(make([]byte, 0, uncompressedSize))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrapf(ErrCodec, "inflate: %v", err)
	}

	return buf.Bytes(), nil
}
