package hook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/shaneholloman/prek/pkg/git"
)

// Guard is the working-tree guard: it stashes unstaged changes before a run
// so hooks see exactly the to-be-committed state, detects files hooks
// modify, and restores the stash on every exit path.
type Guard struct {
	repo     *git.Repository
	patchDir string
	workDir  string

	stash *git.StashInfo

	mu     sync.Mutex
	hashes map[string]string
}

// NewGuard builds a guard for repo. patchDir is the store's patches/ area;
// workDir is the directory candidate paths are relative to.
func NewGuard(repo *git.Repository, patchDir, workDir string) *Guard {
	return &Guard{repo: repo, patchDir: patchDir, workDir: workDir, hashes: make(map[string]string)}
}

// Stash saves unstaged changes as a patch and records the content hash of
// every candidate file. A clean working tree makes the stash a no-op.
func (g *Guard) Stash(candidates []string) error {
	stash, err := g.repo.StashUnstagedChanges(g.patchDir)
	if err != nil && !errors.Is(err, git.ErrNoUnstagedChanges) {
		return fmt.Errorf("failed to stash unstaged changes: %w", err)
	}
	g.stash = stash

	g.RecordHashes(candidates)
	return nil
}

// RecordHashes snapshots the current content hash of files.
func (g *Guard) RecordHashes(files []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range files {
		g.hashes[f] = g.hashFile(f)
	}
}

// ModifiedSince rehashes files and returns the ones whose content changed
// since the last snapshot, updating the snapshot so consecutive priority
// groups attribute modifications to themselves only.
func (g *Guard) ModifiedSince(files []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var modified []string
	for _, f := range files {
		now := g.hashFile(f)
		if prev, ok := g.hashes[f]; ok && prev != now {
			modified = append(modified, f)
		}
		g.hashes[f] = now
	}
	return modified
}

// hashFile content-hashes one candidate; a missing file hashes to a
// sentinel so deletion counts as modification.
func (g *Guard) hashFile(file string) string {
	path := file
	if g.workDir != "" && !filepath.IsAbs(file) {
		path = filepath.Join(g.workDir, file)
	}
	f, err := os.Open(path) // #nosec G304 -- candidate file from git
	if err != nil {
		return "absent"
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "unreadable"
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Restore applies the stashed patch back (three-way if a plain apply
// fails). A failed restore is
// fatal but never silent: the patch stays on disk and its path is surfaced.
func (g *Guard) Restore() error {
	if g.stash == nil {
		return nil
	}
	stash := g.stash
	g.stash = nil

	if ok, _ := g.repo.CanApplyStash(stash); !ok {
		// A hook rewrote something the user had also edited; roll the
		// working tree back to the staged content first so the apply has a
		// clean base.
		if err := g.repo.ResetToStaged(); err != nil {
			return fmt.Errorf("stashed changes conflict with hook edits; patch kept at %s: %w", stash.PatchFile, err)
		}
	}

	if err := g.repo.RestoreFromStash(stash); err != nil {
		return fmt.Errorf("failed to restore working tree; patch kept at %s: %w", stash.PatchFile, err)
	}
	return nil
}

// Stashed reports whether unstaged changes were saved.
func (g *Guard) Stashed() bool { return g.stash != nil }
