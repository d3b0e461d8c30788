package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/config"
)

const minimalConfig = `repos:
  - repo: meta
    hooks:
      - id: identity
`

const orphanConfig = `orphan: true
repos:
  - repo: meta
    hooks:
      - id: identity
`

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q", dir)
	require.NoError(t, cmd.Run())
	return dir
}

func writeConfig(t *testing.T, root, rel, content string) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.LegacyConfigFileName), []byte(content), 0o644))
}

func TestDiscoverSingleProject(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)
	require.Len(t, w.Projects, 1)
	assert.Equal(t, ".", w.Projects[0].RelPath)
}

func TestDiscoverNoConfig(t *testing.T) {
	root := initGitRepo(t)
	_, err := Discover(DiscoverOptions{Cwd: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration found")
}

func TestDiscoverNestedProjectsExecutionOrder(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "services/api", minimalConfig)
	writeConfig(t, root, "services/web", minimalConfig)
	writeConfig(t, root, "lib", minimalConfig)

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)
	require.Len(t, w.Projects, 4)

	// Deepest first, siblings lexicographic, root last.
	var order []string
	for _, p := range w.Projects {
		order = append(order, p.RelPath)
	}
	assert.Equal(t, []string{"services/api", "services/web", "lib", "."}, order)
	for i, p := range w.Projects {
		assert.Equal(t, i, p.Position)
	}
}

func TestDiscoverFromSubdirectoryFindsShallowestConfig(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "sub", minimalConfig)

	w, err := Discover(DiscoverOptions{Cwd: filepath.Join(root, "sub")})
	require.NoError(t, err)
	assert.Equal(t, root, w.Root)
	assert.Len(t, w.Projects, 2)
}

func TestDiscoverSkipsIgnoredAndSpecialDirs(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "skipme", minimalConfig)
	writeConfig(t, root, "{{cookiecutter.project}}", minimalConfig)
	writeConfig(t, root, ".hidden", minimalConfig)
	require.NoError(t, os.WriteFile(filepath.Join(root, PrekIgnoreFileName), []byte("skipme/\n"), 0o644))

	// A nested git checkout is a submodule boundary.
	writeConfig(t, root, "vendor/dep", minimalConfig)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor", "dep", ".git"), 0o755))

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)
	require.Len(t, w.Projects, 1)
	assert.Equal(t, ".", w.Projects[0].RelPath)
}

func TestDiscoverCacheRoundTrip(t *testing.T) {
	root := initGitRepo(t)
	cacheDir := t.TempDir()
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "sub", minimalConfig)

	w1, err := Discover(DiscoverOptions{Cwd: root, CacheDir: cacheDir})
	require.NoError(t, err)

	w2, err := Discover(DiscoverOptions{Cwd: root, CacheDir: cacheDir})
	require.NoError(t, err)
	assert.Equal(t, len(w1.Projects), len(w2.Projects))

	// Touching a config invalidates the fingerprint; --refresh also works.
	cfg := filepath.Join(root, "sub", config.LegacyConfigFileName)
	require.NoError(t, os.WriteFile(cfg, []byte(orphanConfig), 0o644))

	w3, err := Discover(DiscoverOptions{Cwd: root, CacheDir: cacheDir, Refresh: true})
	require.NoError(t, err)
	assert.True(t, w3.ProjectAt("sub").Orphan())
}

func TestFileOwnershipDeepestWins(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "sub", minimalConfig)

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)

	owned := w.AssignFiles([]string{"a.txt", "sub/b.txt", "sub/deep/c.txt"}, nil)
	rootP, subP := w.ProjectAt("."), w.ProjectAt("sub")
	assert.Equal(t, []string{"a.txt"}, owned[rootP])
	assert.Equal(t, []string{"sub/b.txt", "sub/deep/c.txt"}, owned[subP])
}

func TestOrphanHidesFilesFromAncestorsWhenSkipped(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "sub", orphanConfig)

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)
	rootP, subP := w.ProjectAt("."), w.ProjectAt("sub")

	// Orphan skipped by selector: its files fall to nobody, not the root.
	active := map[*Project]bool{rootP: true, subP: false}
	assert.Nil(t, w.Owner("sub/b.txt", active))
	assert.Equal(t, rootP, w.Owner("a.txt", active))

	// A skipped non-orphan yields its files to the ancestor.
	subP.Config.Orphan = false
	assert.Equal(t, rootP, w.Owner("sub/b.txt", active))
}

func TestSelectors(t *testing.T) {
	root := initGitRepo(t)
	writeConfig(t, root, ".", minimalConfig)
	writeConfig(t, root, "sub", minimalConfig)

	w, err := Discover(DiscoverOptions{Cwd: root})
	require.NoError(t, err)
	rootP, subP := w.ProjectAt("."), w.ProjectAt("sub")
	identity := config.Hook{ID: "identity"}

	// Bare hook id matches in every project.
	sel := NewSelection([]string{"identity"}, nil)
	assert.True(t, sel.HookSelected(rootP, identity))
	assert.True(t, sel.HookSelected(subP, identity))
	assert.False(t, sel.HookSelected(rootP, config.Hook{ID: "other"}))

	// Project selector selects descendants only.
	sel = NewSelection([]string{"sub/"}, nil)
	assert.False(t, sel.HookSelected(rootP, identity))
	assert.True(t, sel.HookSelected(subP, identity))

	// project:hook form.
	sel = NewSelection([]string{"sub:identity"}, nil)
	assert.True(t, sel.HookSelected(subP, identity))
	assert.False(t, sel.HookSelected(rootP, identity))

	// Skipping a project skips its descendants.
	sel = NewSelection(nil, []string{"sub/"})
	assert.True(t, sel.ProjectSkipped(subP))
	assert.False(t, sel.ProjectSkipped(rootP))

	// Alias matching.
	aliased := config.Hook{ID: "identity", Alias: "echo"}
	sel = NewSelection([]string{"echo"}, nil)
	assert.True(t, sel.HookSelected(rootP, aliased))
}

func TestSkipSelectorsFromEnvironment(t *testing.T) {
	t.Setenv(SkipEnvVar, "identity, other")
	sel := NewSelection(nil, nil)
	require.Len(t, sel.Skip, 2)
	assert.Equal(t, "identity", sel.Skip[0].HookID)

	t.Setenv(SkipEnvVar, "")
	os.Unsetenv(SkipEnvVar)
	t.Setenv(SkipEnvVarFallback, "fallback-hook")
	sel = NewSelection(nil, nil)
	require.Len(t, sel.Skip, 1)
	assert.Equal(t, "fallback-hook", sel.Skip[0].HookID)
}

func TestIgnoreMatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"),
		[]byte("build/\n*.log\n!keep.log\n"), 0o644))

	m := &ignoreMatcher{}
	require.NoError(t, m.loadIgnoreFile(filepath.Join(dir, ".gitignore"), "."))

	assert.True(t, m.Ignored("build", true))
	assert.True(t, m.Ignored("sub/build", true))
	assert.False(t, m.Ignored("build", false), "dir-only rule")
	assert.True(t, m.Ignored("x/y/trace.log", false))
	assert.False(t, m.Ignored("keep.log", false), "negation")
}
