package repository

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/store"
)

// newLocalRepo creates a throwaway git repository on disk with a single
// commit tagged "v1.0.0", usable as a clone source without any network
// access.
func newLocalRepo(t *testing.T) (dir, rev string) {
	t.Helper()
	dir = t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...) // #nosec G204 -- test-fixed args
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "--initial-branch=main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hook.sh"), []byte("#!/bin/sh\necho ok\n"), 0o755))
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")

	return dir, "v1.0.0"
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOperations_CloneOrUpdateRepo(t *testing.T) {
	repoDir, rev := newLocalRepo(t)
	s := newTestStore(t)
	ops := NewRepositoryOperations(s)

	repo := config.Repo{Repo: repoDir, Rev: rev}

	path, err := ops.CloneOrUpdateRepo(context.Background(), repo)
	require.NoError(t, err)
	assert.DirExists(t, path)
	assert.FileExists(t, filepath.Join(path, "hook.sh"))

	// A second call must be idempotent and return the same path without
	// re-cloning.
	path2, err := ops.CloneOrUpdateRepo(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}

func TestOperations_GetRepoPath_IsDeterministic(t *testing.T) {
	s := newTestStore(t)
	ops := NewRepositoryOperations(s)

	repo := config.Repo{Repo: "https://example.com/foo.git", Rev: "v1.0.0"}

	first := ops.GetRepoPath(repo)
	second := ops.GetRepoPath(repo)
	assert.Equal(t, first, second, "GetRepoPath must be a pure function of (kind, key)")

	other := ops.GetRepoPath(config.Repo{Repo: repo.Repo, Rev: "v2.0.0"})
	assert.NotEqual(t, first, other, "different revisions must map to different store paths")
}

func TestOperations_GetRepoPathWithDeps_DiffersByDeps(t *testing.T) {
	s := newTestStore(t)
	ops := NewRepositoryOperations(s)

	repo := config.Repo{Repo: "https://example.com/foo.git", Rev: "v1.0.0"}

	withoutDeps := ops.GetRepoPathWithDeps(repo, nil)
	withDeps := ops.GetRepoPathWithDeps(repo, []string{"black==23.1.0"})
	assert.NotEqual(t, withoutDeps, withDeps)

	// Dependency order must not matter.
	a := ops.GetRepoPathWithDeps(repo, []string{"flake8", "black"})
	b := ops.GetRepoPathWithDeps(repo, []string{"black", "flake8"})
	assert.Equal(t, a, b)
}

func TestOperations_CloneOrUpdateRepoWithDeps_SeparatesClones(t *testing.T) {
	repoDir, rev := newLocalRepo(t)
	s := newTestStore(t)
	ops := NewRepositoryOperations(s)

	repo := config.Repo{Repo: repoDir, Rev: rev}

	plain, err := ops.CloneOrUpdateRepo(context.Background(), repo)
	require.NoError(t, err)

	withDeps, err := ops.CloneOrUpdateRepoWithDeps(context.Background(), repo, []string{"extra-dep"})
	require.NoError(t, err)

	assert.NotEqual(t, plain, withDeps)
	assert.DirExists(t, plain)
	assert.DirExists(t, withDeps)
}
