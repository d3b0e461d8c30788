package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/config"
)

func mkFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content\n"), 0o644))
	}
	return dir
}

func regex(t *testing.T, expr string) config.Pattern {
	t.Helper()
	p, err := config.NewRegexPattern(expr)
	require.NoError(t, err)
	return p
}

func TestFilesForHookTypeFilters(t *testing.T) {
	dir := mkFiles(t, "src/a.py", "docs/b.md", "c.yaml")
	m := NewMatcher(dir)

	cfg := &config.Config{}
	hook := config.Hook{ID: "h", Types: []string{"python"}}

	got := m.FilesForHook(cfg, hook, []string{"src/a.py", "docs/b.md", "c.yaml"})
	assert.Equal(t, []string{"src/a.py"}, got)
}

func TestCompositionLaw(t *testing.T) {
	dir := mkFiles(t, "src/a.py", "src/b.py", "vendor/c.py", "src/d.txt")
	m := NewMatcher(dir)

	cfg := &config.Config{
		Files:   regex(t, `^src/`),
		Exclude: regex(t, `^vendor/`),
	}
	hook := config.Hook{
		ID:      "h",
		Files:   regex(t, `\.py$`),
		Exclude: regex(t, `b\.py$`),
		Types:   []string{"python"},
	}

	candidates := []string{"src/a.py", "src/b.py", "vendor/c.py", "src/d.txt"}
	got := m.FilesForHook(cfg, hook, candidates)

	// a.py: passes everything. b.py: hook exclude. vendor/c.py: global
	// include (and exclude). d.txt: hook include and types.
	assert.Equal(t, []string{"src/a.py"}, got)
}

func TestTypesOrAndExcludeTypes(t *testing.T) {
	dir := mkFiles(t, "a.py", "b.yaml", "c.md")
	m := NewMatcher(dir)
	cfg := &config.Config{}

	either := config.Hook{ID: "h", TypesOr: []string{"python", "yaml"}}
	got := m.FilesForHook(cfg, either, []string{"a.py", "b.yaml", "c.md"})
	assert.ElementsMatch(t, []string{"a.py", "b.yaml"}, got)

	noYaml := config.Hook{ID: "h", ExcludeTypes: []string{"yaml"}}
	got = m.FilesForHook(cfg, noYaml, []string{"a.py", "b.yaml", "c.md"})
	assert.ElementsMatch(t, []string{"a.py", "c.md"}, got)
}

func TestGlobListPatterns(t *testing.T) {
	dir := mkFiles(t, "gen/x.js", "static/app.min.js", "src/app.js")
	m := NewMatcher(dir)

	exclude, err := config.NewGlobPattern("gen/**", "**/*.min.js")
	require.NoError(t, err)
	cfg := &config.Config{Exclude: exclude}

	hook := config.Hook{ID: "h"}
	got := m.FilesForHook(cfg, hook, []string{"gen/x.js", "static/app.min.js", "src/app.js"})
	assert.Equal(t, []string{"src/app.js"}, got)
}

func TestTypesDefaultToFile(t *testing.T) {
	dir := mkFiles(t, "plain.xyz")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
	m := NewMatcher(dir)
	cfg := &config.Config{}

	hook := config.Hook{ID: "h"}
	got := m.FilesForHook(cfg, hook, []string{"plain.xyz", "subdir"})
	assert.Equal(t, []string{"plain.xyz"}, got, "directories fail the implicit {file} filter")
}

func TestTagsAreMemoized(t *testing.T) {
	dir := mkFiles(t, "a.py")
	m := NewMatcher(dir)

	first := m.Tags("a.py")
	second := m.Tags("a.py")
	assert.Equal(t, first, second)
}
