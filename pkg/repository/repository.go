package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/store"
)

// Operations handles cloning and updating hook repositories into the store,
// entirely through the git binary as a subprocess.
type Operations struct {
	store *store.Store
}

// NewRepositoryOperations creates a new repository operations handler backed
// by s.
func NewRepositoryOperations(s *store.Store) *Operations {
	return &Operations{store: s}
}

// CloneOrUpdateRepo ensures a repository is cloned and at the correct
// revision, returning its path in the store.
func (ops *Operations) CloneOrUpdateRepo(ctx context.Context, repo config.Repo) (string, error) {
	return ops.cloneOrUpdate(ctx, repo, store.RepoKey(repo.Repo, repo.Rev))
}

// CloneOrUpdateRepoWithDeps is the same as CloneOrUpdateRepo, but keys the
// store entry on the additional dependencies too, so configs that request
// different additional_dependencies for the same repo/rev get independent
// clones.
func (ops *Operations) CloneOrUpdateRepoWithDeps(
	ctx context.Context,
	repo config.Repo,
	additionalDeps []string,
) (string, error) {
	return ops.cloneOrUpdate(ctx, repo, store.RepoKeyWithDeps(repo.Repo, repo.Rev, additionalDeps))
}

// GetRepoPath returns the path where repo would be cached, without cloning.
func (ops *Operations) GetRepoPath(repo config.Repo) string {
	return ops.store.PathFor(store.KindRepo, store.RepoKey(repo.Repo, repo.Rev))
}

// GetRepoPathWithDeps is the additional-dependencies variant of GetRepoPath.
func (ops *Operations) GetRepoPathWithDeps(repo config.Repo, additionalDeps []string) string {
	return ops.store.PathFor(store.KindRepo, store.RepoKeyWithDeps(repo.Repo, repo.Rev, additionalDeps))
}

func (ops *Operations) cloneOrUpdate(ctx context.Context, repo config.Repo, key string) (string, error) {
	repoPath := ops.store.PathFor(store.KindRepo, key)

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		if err := git.UpdateRepo(ctx, repoPath, repo.Rev); err == nil {
			_ = ops.store.RecordLastUsed(repoPath)
			return repoPath, nil
		}
		// A corrupt or unreachable clone is discarded and redone under lock,
		// rather than left to fail every run.
		if rmErr := os.RemoveAll(repoPath); rmErr != nil {
			fmt.Printf("[WARN] failed to remove stale repository clone: %v\n", rmErr)
		}
	}

	return ops.cloneWithLock(ctx, repo, key, repoPath)
}

// cloneWithLock clones repo into repoPath, holding the store's per-key lock
// so concurrent invocations against the same (url, rev[, deps]) never race.
func (ops *Operations) cloneWithLock(
	ctx context.Context,
	repo config.Repo,
	key, repoPath string,
) (string, error) {
	lock, err := ops.store.LockExclusive(ctx, store.KindRepo, key)
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock for cloning %s: %w", repo.Repo, err)
	}
	defer func() { _ = lock.Release() }()

	// Another process may have finished the clone while we waited for the lock.
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		return repoPath, nil
	}

	scratch, err := ops.store.ScratchDir("repo")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	cloneDest := filepath.Join(scratch, "repo")
	if err := git.CloneRepo(ctx, repo.Repo, repo.Rev, cloneDest); err != nil {
		return "", fmt.Errorf("failed to clone repository %s: %w", repo.Repo, err)
	}

	if err := store.AtomicRename(cloneDest, repoPath); err != nil {
		return "", fmt.Errorf("failed to install cloned repository %s: %w", repo.Repo, err)
	}

	_ = ops.store.RecordLastUsed(repoPath)
	return repoPath, nil
}
