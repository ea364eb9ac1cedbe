package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"vareview/internal/fileutil"
	"vareview/internal/source"
)

// Mode is the access level requested for a directory.
type Mode string

const (
	ModeRead      Mode = "read"
	ModeReadWrite Mode = "readwrite"
)

// Permission is the state of access to a directory.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	// PermissionPrompt means access could be granted by a request, for
	// example by creating a directory that does not exist yet.
	PermissionPrompt Permission = "prompt"
)

// Dir is a handle to a directory the user granted to the library.
type Dir interface {
	Name() string
	Path() string
	QueryPermission(mode Mode) Permission
	RequestPermission(mode Mode) Permission
	// Dir opens a child directory, creating it when create is set.
	Dir(name string, create bool) (Dir, error)
	HasFile(name string) bool
	HasDir(name string) bool
	File(name string) (source.File, error)
	ReadFile(name string) ([]byte, error)
	// WriteFile atomically replaces name with the contents of r. A
	// non-negative size is verified against the bytes written.
	WriteFile(name string, r io.Reader, size int64) error
	Remove(name string) error
}

// OSDir is a Dir on the local filesystem.
type OSDir struct {
	path string
}

// NewOSDir returns a handle for path. The directory need not exist yet.
func NewOSDir(path string) *OSDir {
	return &OSDir{path: filepath.Clean(path)}
}

func (d *OSDir) Name() string { return filepath.Base(d.path) }
func (d *OSDir) Path() string { return d.path }

// QueryPermission checks access without changing anything.
func (d *OSDir) QueryPermission(mode Mode) Permission {
	info, err := os.Stat(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && mode == ModeReadWrite {
			return PermissionPrompt
		}
		return PermissionDenied
	}
	if !info.IsDir() {
		return PermissionDenied
	}
	bits := uint32(unix.R_OK | unix.X_OK)
	if mode == ModeReadWrite {
		bits |= unix.W_OK
	}
	if err := unix.Access(d.path, bits); err != nil {
		return PermissionDenied
	}
	return PermissionGranted
}

// RequestPermission creates a missing directory for read-write access and
// re-queries.
func (d *OSDir) RequestPermission(mode Mode) Permission {
	if state := d.QueryPermission(mode); state != PermissionPrompt {
		return state
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return PermissionDenied
	}
	return d.QueryPermission(mode)
}

func (d *OSDir) Dir(name string, create bool) (Dir, error) {
	target, err := d.child(name)
	if err != nil {
		return nil, err
	}
	if create {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", name)
	}
	return &OSDir{path: target}, nil
}

func (d *OSDir) HasFile(name string) bool {
	target, err := d.child(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && info.Mode().IsRegular()
}

func (d *OSDir) HasDir(name string) bool {
	target, err := d.child(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && info.IsDir()
}

func (d *OSDir) File(name string) (source.File, error) {
	target, err := d.child(name)
	if err != nil {
		return nil, err
	}
	return source.FromPath(target)
}

func (d *OSDir) ReadFile(name string) ([]byte, error) {
	target, err := d.child(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

func (d *OSDir) WriteFile(name string, r io.Reader, size int64) error {
	target, err := d.child(name)
	if err != nil {
		return err
	}
	if size < 0 {
		_, err = fileutil.WriteAtomic(target, r, 0o644)
		return err
	}
	return fileutil.WriteAtomicSized(target, r, 0o644, size)
}

// Remove deletes a file or a directory tree. Removing a missing entry is not
// an error.
func (d *OSDir) Remove(name string) error {
	target, err := d.child(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(target)
}

// child resolves name as a direct child, rejecting separators and dot names.
func (d *OSDir) child(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	return filepath.Join(d.path, name), nil
}

// EnsurePermission queries access to dir and requests it when not yet
// granted. It never fails; false means the caller should prompt for another
// directory or fall back.
func EnsurePermission(dir Dir, mode Mode) bool {
	if dir == nil {
		return false
	}
	if dir.QueryPermission(mode) == PermissionGranted {
		return true
	}
	return dir.RequestPermission(mode) == PermissionGranted
}

// ResolveDatasetsDir returns the directory holding datasets: the legacy
// VideoAnnotatorDatasets subdirectory when present, else root itself.
func ResolveDatasetsDir(root Dir) Dir {
	if root == nil {
		return nil
	}
	if root.HasDir(LegacyDatasetsDir) {
		if legacy, err := root.Dir(LegacyDatasetsDir, false); err == nil {
			return legacy
		}
	}
	return root
}
