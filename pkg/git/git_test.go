package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=t@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=t@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func newRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()
	runGitCmd(t, dir, "init", "-q", "--initial-branch=main")
	repo, err := NewRepository(dir)
	require.NoError(t, err)
	return repo, dir
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	runGitCmd(t, dir, "add", name)
	runGitCmd(t, dir, "commit", "-q", "-m", "add "+name)
}

func TestFindGitRoot(t *testing.T) {
	_, dir := newRepo(t)

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := FindGitRoot(sub)
	require.NoError(t, err)
	// Resolve symlinks so macOS /tmp vs /private/tmp compare equal.
	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, wantRoot, gotRoot)

	_, err = FindGitRoot(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestStagedAndUnstagedFiles(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "base.txt", "base\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "staged.txt"), []byte("s\n"), 0o644))
	runGitCmd(t, dir, "add", "staged.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("edited\n"), 0o644))

	staged, err := repo.GetStagedFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"staged.txt"}, staged)

	unstaged, err := repo.GetUnstagedFiles()
	require.NoError(t, err)
	assert.Contains(t, unstaged, "base.txt")

	has, err := repo.HasUnstagedChanges()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestChangedFilesBetweenRefs(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "one.txt", "1\n")
	commitFile(t, dir, "two.txt", "2\n")

	files, err := repo.GetChangedFiles("HEAD~1", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{"two.txt"}, files)

	all, err := repo.GetAllFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, all)
}

func TestHashObjectChangesWithContent(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "f.txt", "v1\n")

	h1, err := repo.HashObject("f.txt")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("v2\n"), 0o644))
	h2, err := repo.HashObject("f.txt")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestAttrQuery(t *testing.T) {
	repo, dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitattributes"), []byte("*.bin filter=lfs\n"), 0o644))
	commitFile(t, dir, "data.bin", "x")

	attr, err := repo.Attr("data.bin", "filter")
	require.NoError(t, err)
	assert.Equal(t, "lfs", attr)

	attr, err = repo.Attr("other.txt", "filter")
	require.NoError(t, err)
	assert.Contains(t, []string{"unspecified", ""}, attr)
}

func TestHookInstallUninstall(t *testing.T) {
	repo, _ := newRepo(t)

	require.False(t, repo.HasHook("pre-commit"))
	require.NoError(t, repo.InstallHook("pre-commit", "#!/bin/sh\nexit 0\n"))
	assert.True(t, repo.HasHook("pre-commit"))

	require.NoError(t, repo.UninstallHook("pre-commit"))
	assert.False(t, repo.HasHook("pre-commit"))
	// Removing a missing hook is not an error.
	assert.NoError(t, repo.UninstallHook("pre-commit"))
}

func TestCloneRepoAndUpdate(t *testing.T) {
	_, src := newRepo(t)
	commitFile(t, src, "hook.sh", "#!/bin/sh\necho ok\n")
	runGitCmd(t, src, "tag", "v1.0.0")

	dest := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, CloneRepo(context.Background(), src, "v1.0.0", dest))
	assert.FileExists(t, filepath.Join(dest, "hook.sh"))

	// Updating to an already-resolvable rev needs no network.
	require.NoError(t, UpdateRepo(context.Background(), dest, "v1.0.0"))
}

func TestListTagsWithDates(t *testing.T) {
	_, src := newRepo(t)
	commitFile(t, src, "a.txt", "a\n")
	runGitCmd(t, src, "tag", "v1.0.0")
	runGitCmd(t, src, "tag", "-a", "v1.1.0", "-m", "annotated")

	tags, err := ListTagsWithDates(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, tags, 2)

	names := []string{tags[0].Name, tags[1].Name}
	assert.ElementsMatch(t, []string{"v1.0.0", "v1.1.0"}, names)
	for _, tag := range tags {
		assert.False(t, tag.CreatedAt.IsZero())
	}
}

func TestNoGitEnvFiltersDangerousVariables(t *testing.T) {
	env := NoGitEnv([]string{
		"PATH=/usr/bin",
		"GIT_DIR=/somewhere/.git",
		"GIT_WORK_TREE=/somewhere",
		"GIT_INDEX_FILE=/somewhere/index",
		"GIT_SSH_COMMAND=ssh -i key",
		"GIT_CONFIG_KEY_0=user.name",
	})

	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "GIT_SSH_COMMAND=ssh -i key")
	assert.Contains(t, env, "GIT_CONFIG_KEY_0=user.name")
	assert.NotContains(t, env, "GIT_DIR=/somewhere/.git")
	assert.NotContains(t, env, "GIT_WORK_TREE=/somewhere")
	assert.NotContains(t, env, "GIT_INDEX_FILE=/somewhere/index")
}

func TestStashRoundTripIsByteIdentical(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "f.txt", "committed\n")

	// Stage one change, leave another unstaged.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("committed\nstaged\n"), 0o644))
	runGitCmd(t, dir, "add", "f.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("committed\nstaged\nunstaged\n"), 0o644))

	patchDir := t.TempDir()
	stash, err := repo.StashUnstagedChanges(patchDir)
	require.NoError(t, err)
	require.NotNil(t, stash)
	assert.FileExists(t, stash.PatchFile)

	// Hooks see exactly the staged content.
	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "committed\nstaged\n", string(data))

	require.NoError(t, repo.RestoreFromStash(stash))
	data, err = os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "committed\nstaged\nunstaged\n", string(data))
}

func TestStashNoopWithoutUnstagedChanges(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "f.txt", "clean\n")

	_, err := repo.StashUnstagedChanges(t.TempDir())
	assert.ErrorIs(t, err, ErrNoUnstagedChanges)
}

func TestCanApplyStashDetectsConflicts(t *testing.T) {
	repo, dir := newRepo(t)
	commitFile(t, dir, "f.txt", "base\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("base\nuser edit\n"), 0o644))
	stash, err := repo.StashUnstagedChanges(t.TempDir())
	require.NoError(t, err)

	ok, err := repo.CanApplyStash(stash)
	require.NoError(t, err)
	assert.True(t, ok)

	// A hook rewriting the same region makes the plain apply fail.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hook rewrote everything\n"), 0o644))
	ok, err = repo.CanApplyStash(stash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ResetToStaged())
	ok, err = repo.CanApplyStash(stash)
	require.NoError(t, err)
	assert.True(t, ok)

	repo.CleanupStash(stash)
	assert.NoFileExists(t, stash.PatchFile)
}
