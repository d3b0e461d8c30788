// Package store implements the content-addressed on-disk cache described by
// the store component: cloned repositories, installed hook environments,
// downloaded toolchains, working-tree patches, and the scratch area used for
// atomic renames into any of the above.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Kind names one of the store's top-level content areas. Each kind has its
// own lock namespace so that, e.g., a repo clone and an env install never
// contend on the same lock.
type Kind string

const (
	KindRepo      Kind = "repo"
	KindEnv       Kind = "env"
	KindToolchain Kind = "toolchain"
	KindGC        Kind = "gc"
)

// Store is the on-disk layout rooted at $PREK_HOME. All paths handed out by
// PathFor are pure functions of (kind, key); no database indirection is
// needed to find an existing entry.
type Store struct {
	root string
}

// Open uses root, or DefaultHome when root is empty, and ensures the store's
// top-level directories exist.
func Open(root string) (*Store, error) {
	if root == "" {
		var err error
		root, err = DefaultHome()
		if err != nil {
			return nil, err
		}
	}

	s := &Store{root: root}
	for _, dir := range []string{"repos", "envs", "toolchains", "patches", "scratch", "locks"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// DefaultHome resolves the store root using the same precedence as the
// installed tool: PREK_HOME, then XDG_CACHE_HOME/prek, then ~/.cache/prek.
func DefaultHome() (string, error) {
	if home := os.Getenv("PREK_HOME"); home != "" {
		return expandTilde(home), nil
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "prek"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cache", "prek"), nil
}

func expandTilde(path string) string {
	if path == "~" || filepath.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// PathFor is the pure function mapping (kind, key) to its on-disk location.
func (s *Store) PathFor(kind Kind, key string) string {
	switch kind {
	case KindRepo:
		return filepath.Join(s.root, "repos", key)
	case KindEnv:
		return filepath.Join(s.root, "envs", key)
	case KindToolchain:
		return filepath.Join(s.root, "toolchains", key)
	default:
		return filepath.Join(s.root, string(kind), key)
	}
}

// ScratchDir returns a fresh scratch subdirectory guaranteed to share a
// filesystem with the store's destination directories, so renames into
// place are atomic.
func (s *Store) ScratchDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Join(s.root, "scratch"), prefix+"-")
	if err != nil {
		return "", fmt.Errorf("failed to allocate scratch directory: %w", err)
	}
	return dir, nil
}

// PatchPath returns a timestamped patch file path under the store's
// patches/ directory. The working-tree guard does not use it: the patches it
// writes to patches/ are named by pkg/git with a random token.
func (s *Store) PatchPath(token string) string {
	name := fmt.Sprintf("%s-%s.patch", time.Now().UTC().Format("20060102T150405"), token)
	return filepath.Join(s.root, "patches", name)
}

// RecordLastUsed touches an access-time marker inside an env or repo
// directory, consulted by garbage_collect to age out unreferenced entries.
func (s *Store) RecordLastUsed(path string) error {
	marker := filepath.Join(path, ".last-used")
	now := time.Now()
	if err := os.Chtimes(marker, now, now); err == nil {
		return nil
	}
	f, err := os.Create(marker) // #nosec G304 -- path is store-internal
	if err != nil {
		return fmt.Errorf("failed to record last-used marker: %w", err)
	}
	return f.Close()
}

// LastUsed returns the last-used marker's modification time, or the zero
// time if none has been recorded yet.
func (s *Store) LastUsed(path string) time.Time {
	info, err := os.Stat(filepath.Join(path, ".last-used"))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Clean removes every cached repo, env, and toolchain, leaving the store
// root itself and its lock directory in place.
func (s *Store) Clean() error {
	for _, sub := range []string{"repos", "envs", "toolchains"} {
		entries, err := os.ReadDir(filepath.Join(s.root, sub))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(s.root, sub, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove %s/%s: %w", sub, entry.Name(), err)
			}
		}
	}
	return nil
}
