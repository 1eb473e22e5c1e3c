// Package tmpstore manages scratch file paths under a single process-wide
// temp root. All paths handed out by a Store live below its root; basenames
// are sanitized against path traversal before use.
package tmpstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// scratchDirPerm is the permission mode for scratch subdirectories.
const scratchDirPerm = 0750

// unsafeChars matches every byte not allowed in a scratch basename.
// Only alphanumerics, '.', and '-' survive sanitization.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Store allocates and releases scratch files under a fixed root directory.
type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamp prefixes (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at dir. An empty dir uses the system temp
// directory.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	s := &Store{
		root: dir,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the scratch root directory.
func (s *Store) Root() string {
	return s.root
}

// AllocatePath returns a collision-resistant path for name inside subdir.
// The basename is sanitized and prefixed with a millisecond timestamp.
// The containing directory is not created; call EnsureDir first.
func (s *Store) AllocatePath(name, subdir string) string {
	base := fmt.Sprintf("%d_%s", s.now().UnixMilli(), Sanitize(name))
	return filepath.Join(s.root, subdir, base)
}

// AllocatePathExact returns a path for name inside subdir without a
// timestamp prefix. Used where the caller needs deterministic names,
// e.g. chunk part files keyed by index.
func (s *Store) AllocatePathExact(name, subdir string) string {
	return filepath.Join(s.root, subdir, Sanitize(name))
}

// EnsureDir creates subdir under the root (recursively) and returns its
// path. Idempotent.
func (s *Store) EnsureDir(subdir string) (string, error) {
	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, scratchDirPerm); err != nil {
		return "", fmt.Errorf("cannot create scratch directory %s: %w", dir, err)
	}
	return dir, nil
}

// Release deletes a scratch file. A missing file is not an error, so
// double-release is safe; other failures (e.g. permissions) are returned.
func (s *Store) Release(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot release scratch file %s: %w", path, err)
	}
	return nil
}

// Sanitize strips path-traversal characters from a basename, replacing
// everything outside [a-zA-Z0-9.-] with underscores.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(filepath.Base(name), "_")
}
