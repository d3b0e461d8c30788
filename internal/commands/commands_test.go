package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/git"
)

func tagsFrom(names ...string) []git.Tag {
	var out []git.Tag
	for i, name := range names {
		out = append(out, git.Tag{Name: name, CreatedAt: time.Unix(int64(1000+i), 0)})
	}
	return out
}

func TestHookShimShape(t *testing.T) {
	script := fmt.Sprintf(hookShim, "pre-commit", "/usr/local/bin/prek", "pre-commit")

	assert.Contains(t, script, "#!/bin/sh")
	assert.Contains(t, script, "hook-impl --hook-type=pre-commit")
	assert.Contains(t, script, `"/usr/local/bin/prek"`, "fallback to the installing binary")
	assert.Contains(t, script, `command -v prek`, "PATH resolution comes first")
}

func TestHookTypeOptionsResolve(t *testing.T) {
	var opts HookTypeOptions
	types, err := opts.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre-commit"}, types)

	opts.HookTypes = []string{"pre-push", "commit-msg"}
	types, err = opts.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre-push", "commit-msg"}, types)

	opts.HookTypes = []string{"post-lunch"}
	_, err = opts.Resolve(nil)
	assert.Error(t, err)
}

func TestValidateConfigCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("repos:\n  - repo: meta\n    hooks:\n      - id: identity\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("repos:\n  - repo: local\n    hooks:\n      - id: x\n"), 0o644))

	cmd := &ValidateConfigCommand{}
	assert.Equal(t, 0, cmd.Run([]string{good}))
	assert.Equal(t, 1, cmd.Run([]string{bad}))
}

func TestValidateManifestCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(good, []byte(
		"- id: lint\n  name: lint\n  entry: lint\n  language: python\n"), 0o644))
	incomplete := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(incomplete, []byte("- id: lint\n"), 0o644))

	cmd := &ValidateManifestCommand{}
	assert.Equal(t, 0, cmd.Run([]string{good}))
	assert.Equal(t, 1, cmd.Run([]string{incomplete}))
}

func TestRewriteRevPreservesEverythingElse(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "cfg.yaml")
	original := `# pinned hooks
repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.5.0  # keep fresh
    hooks:
      - id: check-yaml
  - repo: https://example.com/other
    rev: v1.0.0
    hooks:
      - id: thing
`
	require.NoError(t, os.WriteFile(cfg, []byte(original), 0o644))

	require.NoError(t, rewriteRev(cfg, "https://github.com/pre-commit/pre-commit-hooks", "v4.5.0", "v4.6.0"))

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	got := string(data)
	assert.Contains(t, got, "rev: v4.6.0  # keep fresh", "comments and spacing survive")
	assert.Contains(t, got, "# pinned hooks")
	assert.Contains(t, got, "rev: v1.0.0", "other repos untouched")
}

func TestPickTagPrefersSemverSimilarity(t *testing.T) {
	tags := tagsFrom("v1.2.0", "v1.10.0", "v1.9.0", "nightly-2024")
	assert.Equal(t, "v1.10.0", pickTag(tags, "v1.2.0"))

	// Unprefixed current rev prefers unprefixed tags.
	tags = tagsFrom("2.0.0", "v2.1.0")
	assert.Equal(t, "2.0.0", pickTag(tags, "1.9.0"))
}

func TestVersionKey(t *testing.T) {
	key, ok := versionKey("v1.2.3")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, key)

	_, ok = versionKey("nightly")
	assert.False(t, ok)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "1.5 MiB", humanSize(3*512*1024))
}
