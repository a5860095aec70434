package runs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns are scanned when nothing else is configured.
var DefaultPatterns = []string{
	"./runs",
	"../*/runs",
	"../../*/runs",
	"/path/to/your/projects/*/runs",
}

// PathList is the ordered, append-only set of glob patterns that locate
// runs directories. It is safe for concurrent use.
type PathList struct {
	mu       sync.RWMutex
	patterns []string
}

// NewPathList copies patterns, dropping blanks and duplicates.
func NewPathList(patterns []string) *PathList {
	l := &PathList{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(l.patterns, p) {
			continue
		}
		l.patterns = append(l.patterns, p)
	}
	return l
}

// Snapshot returns a copy of the current patterns.
func (l *PathList) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.patterns)
}

func (l *PathList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.patterns)
}

// Add appends pattern. Empty or syntactically invalid patterns return
// ErrInvalidPath; a pattern already present returns ErrDuplicatePath.
func (l *PathList) Add(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if !doublestar.ValidatePathPattern(pattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, pattern)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.patterns, pattern) {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, pattern)
	}
	l.patterns = append(l.patterns, pattern)
	return nil
}

// Expand resolves one pattern to the existing directories it matches, sorted.
func Expand(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", pattern, err)
	}
	dirs := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, m)
	}
	slices.Sort(dirs)
	return dirs, nil
}

// ScanResults expands every pattern and returns the directories that exist now.
func (l *PathList) ScanResults() []string {
	out := []string{}
	seen := map[string]bool{}
	for _, p := range l.Snapshot() {
		dirs, err := Expand(p)
		if err != nil {
			continue
		}
		for _, d := range dirs {
			key := absKey(d)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, d)
		}
	}
	return out
}

func absKey(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
