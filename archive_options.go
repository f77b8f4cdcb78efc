package mzip

import (
	"errors"

	"github.com/klauspost/compress/flate"
)

const minConcurrency = 1

var (
	ErrMinConcurrency   = errors.New("mzip: concurrency must be 1 or greater")
	ErrCompressionLevel = errors.New("mzip: invalid compression level")
	ErrNilCodec         = errors.New("mzip: codec must not be nil")
)

type option func(*Archive) error

// Concurrency sets the number of goroutines used to compress pending entries
// at close time. An error is returned if n is less than 1.
func Concurrency(n int) option {
	return func(a *Archive) error {
		if n < minConcurrency {
			return ErrMinConcurrency
		}

		a.concurrency = n
		return nil
	}
}

// StrictNames makes Add reject names already present in the archive. By
// default duplicate names are allowed, as raw zip permits shadowed entries.
func StrictNames() option {
	return func(a *Archive) error {
		a.strict = true
		return nil
	}
}

// CompressionLevel sets the deflate level of the default codec. It has no
// effect on stored entries or on a codec injected with WithCodec.
func CompressionLevel(level int) option {
	return func(a *Archive) error {
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return ErrCompressionLevel
		}

		a.level = level
		return nil
	}
}

// WithCodec replaces the default deflate codec.
func WithCodec(c Codec) option {
	return func(a *Archive) error {
		if c == nil {
			return ErrNilCodec
		}

		a.codec = c
		return nil
	}
}
