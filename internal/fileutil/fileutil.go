package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into path through a temporary sibling file that is
// renamed into place once fully written, so readers never observe a partial
// file. It returns the number of bytes written.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (int64, error) {
	return writeAtomic(path, r, mode, -1)
}

// WriteAtomicSized is WriteAtomic with a size check. The destination is left
// untouched when the stream length differs from wantSize.
func WriteAtomicSized(path string, r io.Reader, mode os.FileMode, wantSize int64) error {
	_, err := writeAtomic(path, r, mode, wantSize)
	return err
}

// WriteBytesAtomic atomically replaces path with data.
func WriteBytesAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := writeAtomic(path, bytes.NewReader(data), mode, int64(len(data)))
	return err
}

func writeAtomic(path string, r io.Reader, mode os.FileMode, wantSize int64) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return written, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if wantSize >= 0 && written != wantSize {
		cleanup()
		return written, fmt.Errorf("write %s: size mismatch: expected %d bytes, wrote %d bytes", filepath.Base(path), wantSize, written)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return written, fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return written, nil
}
