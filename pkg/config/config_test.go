package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, LegacyConfigFileName, `
repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.5.0
    hooks:
      - id: trailing-whitespace
      - id: check-yaml
        files: ^configs/
        priority: 5
  - repo: local
    hooks:
      - id: lint
        name: lint
        entry: make lint
        language: system
        pass_filenames: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Repos, 2)

	assert.Equal(t, KindRemote, cfg.Repos[0].Kind())
	assert.Equal(t, "v4.5.0", cfg.Repos[0].Rev)

	checkYAML := cfg.Repos[0].Hooks[1]
	require.NotNil(t, checkYAML.Priority)
	assert.Equal(t, 5, *checkYAML.Priority)
	assert.True(t, checkYAML.Files.Matches("configs/app.yaml"))
	assert.False(t, checkYAML.Files.Matches("src/app.yaml"))

	local := cfg.Repos[1]
	assert.Equal(t, KindLocal, local.Kind())
	assert.False(t, local.Hooks[0].ShouldPassFilenames())
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ConfigFileName, `
fail_fast = true
orphan = true

[[repos]]
repo = "builtin"

[[repos.hooks]]
id = "trailing-whitespace"

[[repos.hooks]]
id = "end-of-file-fixer"
exclude = ["vendor/**", "**/*.min.js"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.FailFast)
	assert.True(t, cfg.Orphan)
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, KindBuiltin, cfg.Repos[0].Kind())

	eof := cfg.Repos[0].Hooks[1]
	assert.True(t, eof.Exclude.Matches("vendor/lib/a.go"))
	assert.True(t, eof.Exclude.Matches("static/app.min.js"))
	assert.False(t, eof.Exclude.Matches("src/app.js"))
}

func TestLoadConfigEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, LegacyConfigFileName, "  \n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestFindConfigFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LegacyConfigFileName, "repos: []\n")
	assert.Equal(t, filepath.Join(dir, LegacyConfigFileName), FindConfigFile(dir))

	// The tool-specific TOML name wins over legacy names.
	writeFile(t, dir, ConfigFileName, "repos = []\n")
	assert.Equal(t, filepath.Join(dir, ConfigFileName), FindConfigFile(dir))

	assert.Empty(t, FindConfigFile(t.TempDir()))
}

func TestValidateRepoKinds(t *testing.T) {
	tests := []struct {
		name    string
		repo    Repo
		wantErr string
	}{
		{
			name:    "remote requires rev",
			repo:    Repo{Repo: "https://example.com/repo", Hooks: []Hook{{ID: "x"}}},
			wantErr: "rev is required",
		},
		{
			name:    "local requires entry and language",
			repo:    Repo{Repo: RepoLocal, Hooks: []Hook{{ID: "x", Name: "x"}}},
			wantErr: "local hooks require",
		},
		{
			name:    "meta forbids entry",
			repo:    Repo{Repo: RepoMeta, Hooks: []Hook{{ID: "identity", Entry: "echo"}}},
			wantErr: "entry is not allowed",
		},
		{
			name:    "builtin forbids non-system language",
			repo:    Repo{Repo: RepoBuiltin, Hooks: []Hook{{ID: "check-yaml", Language: "python"}}},
			wantErr: "language must be",
		},
		{
			name:    "negative priority",
			repo:    Repo{Repo: RepoMeta, Hooks: []Hook{{ID: "identity", Priority: intPtr(-1)}}},
			wantErr: "priority must be non-negative",
		},
		{
			name: "valid local",
			repo: Repo{Repo: RepoLocal, Hooks: []Hook{{ID: "x", Name: "x", Entry: "true", Language: "system"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Repos: []Repo{tt.repo}}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestMergeHookUserConfigAuthoritative(t *testing.T) {
	manifest := Hook{
		ID:       "flake8",
		Name:     "flake8",
		Entry:    "flake8",
		Language: "python",
		Types:    []string{"python"},
		Priority: intPtr(3),
	}
	override := Hook{
		ID:       "flake8",
		Args:     []string{"--max-line-length=120"},
		Priority: intPtr(7),
	}

	merged := MergeHook(manifest, override)
	assert.Equal(t, "flake8", merged.Name)
	assert.Equal(t, []string{"--max-line-length=120"}, merged.Args)
	assert.Equal(t, []string{"python"}, merged.Types)
	require.NotNil(t, merged.Priority)
	assert.Equal(t, 7, *merged.Priority)
}

func TestEffectiveTypesDefault(t *testing.T) {
	assert.Equal(t, []string{"file"}, Hook{}.EffectiveTypes())
	assert.Equal(t, []string{"python"}, Hook{Types: []string{"python"}}.EffectiveTypes())
}

func TestRunsAtStage(t *testing.T) {
	h := Hook{Stages: []string{"commit"}}
	assert.True(t, h.RunsAtStage("pre-commit", nil))
	assert.False(t, h.RunsAtStage("pre-push", nil))

	unset := Hook{}
	assert.True(t, unset.RunsAtStage("pre-push", nil))
	assert.False(t, unset.RunsAtStage("pre-push", []string{"pre-commit"}))
}

func TestCheckMinimumVersion(t *testing.T) {
	assert.NoError(t, CheckMinimumVersion("1.2.0", "1.1.9"))
	assert.NoError(t, CheckMinimumVersion("dev", "99.0"))
	assert.Error(t, CheckMinimumVersion("1.2.0", "1.3"))
	assert.Error(t, CheckMinimumVersion("1.0.0", "not-a-version"))
}
