package testutils

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// TempArchivePath returns a path for a throwaway archive inside a directory
// cleaned up with the test.
func TempArchivePath(t testing.TB) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "archive.zip")
}

// WriteStdlibArchive creates a zip archive at path with the stdlib writer, for
// interop fixtures. Map iteration order is not guaranteed, so callers should
// not rely on entry order.
func WriteStdlibArchive(t testing.TB, path string, files map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	assert.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, data := range files {
		entry, err := w.Create(name)
		assert.NoError(t, err)
		_, err = entry.Write(data)
		assert.NoError(t, err)
	}

	assert.NoError(t, w.Close())
}

// GetArchiveReader opens path with the stdlib reader, to cross-check archives
// written by this module.
func GetArchiveReader(t testing.TB, path string) *zip.ReadCloser {
	t.Helper()

	reader, err := zip.OpenReader(path)
	assert.NoError(t, err)

	return reader
}

// ReadStdlibEntry extracts one named entry via the stdlib reader.
func ReadStdlibEntry(t testing.TB, reader *zip.ReadCloser, name string) []byte {
	t.Helper()

	f, found := Find(reader.File, func(f *zip.File) bool { return f.Name == name })
	if !found {
		t.Fatalf("expected file %s to be in archive but wasn't", name)
	}

	rc, err := f.Open()
	assert.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	assert.NoError(t, err)

	return data
}

// AssertArchiveContainsFile fails the test unless one of files is named name.
func AssertArchiveContainsFile(t testing.TB, files []*zip.File, name string) {
	t.Helper()

	_, found := Find(files, func(f *zip.File) bool {
		return f.Name == name
	})

	if !found {
		t.Errorf("expected file %s to be in archive but wasn't", name)
	}
}

func Find[T any](elements []T, cb func(element T) bool) (T, bool) {
	for _, e := range elements {
		if cb(e) {
			return e, true
		}
	}

	return *new(T), false
}
