package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrOutsideRoot = errors.New("safeio: path escapes root")
	ErrNotFile     = errors.New("safeio: not a regular file")
)

// SafeFS provides read-only access to files under a fixed root directory.
// Lexical traversal and symlinks that resolve outside the root are refused.
type SafeFS struct {
	absRoot string // absolute root with symlinks resolved
}

// NewSafeFS locks all future operations to root.
func NewSafeFS(root string) (*SafeFS, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: root is not a directory")
	}
	return &SafeFS{absRoot: abs}, nil
}

func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.absRoot
}

// OpenFile opens a regular file given relative to the root and returns it
// with its metadata. The caller closes the file.
func (s *SafeFS) OpenFile(rel string) (*os.File, fs.FileInfo, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFile, rel)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, info, nil
}

// Open implements fs.FS (names use "/" separators).
func (s *SafeFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	f, _, err := s.OpenFile(filepath.FromSlash(name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SafeFS) resolve(rel string) (string, error) {
	if s == nil {
		return "", errors.New("safeio: filesystem not configured")
	}
	if rel == "" {
		return "", errors.New("safeio: empty path")
	}
	if filepath.IsAbs(rel) || (runtime.GOOS == "windows" && filepath.VolumeName(rel) != "") {
		return "", fmt.Errorf("%w: absolute path %q", ErrOutsideRoot, rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(s.absRoot, clean))
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, s.absRoot) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideRoot, rel, resolved)
	}
	return resolved, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
