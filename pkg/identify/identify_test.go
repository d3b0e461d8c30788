package identify

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, mode))
	return path
}

func TestIdentifyExtension(t *testing.T) {
	dir := t.TempDir()

	py := write(t, dir, "a.py", []byte("print('hi')\n"), 0o644)
	tags := Identify(py)
	assert.True(t, tags.Has("file"))
	assert.True(t, tags.Has("python"))
	assert.True(t, tags.Has("text"))
	assert.False(t, tags.Has("binary"))

	yml := write(t, dir, "b.yml", []byte("a: 1\n"), 0o644)
	assert.True(t, Identify(yml).Has("yaml"))
}

func TestIdentifyWellKnownNames(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Identify(write(t, dir, "Dockerfile", []byte("FROM x\n"), 0o644)).Has("dockerfile"))
	assert.True(t, Identify(write(t, dir, "Makefile", []byte("all:\n"), 0o644)).Has("makefile"))
	assert.True(t, Identify(write(t, dir, "Gemfile", nil, 0o644)).Has("ruby"))
}

func TestIdentifyShebang(t *testing.T) {
	dir := t.TempDir()

	script := write(t, dir, "tool", []byte("#!/usr/bin/env python3\nprint()\n"), 0o755)
	tags := Identify(script)
	assert.True(t, tags.Has("python"))

	sh := write(t, dir, "runit", []byte("#!/bin/sh\necho ok\n"), 0o755)
	assert.True(t, Identify(sh).Has("shell"))

	// Extension tags win; the shebang is never consulted for odd.py.
	weird := write(t, dir, "odd.py", []byte("#!/bin/sh\n"), 0o644)
	tags = Identify(weird)
	assert.True(t, tags.Has("python"))
	assert.False(t, tags.Has("shell"))
}

func TestIdentifyExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits are unreliable on windows")
	}
	dir := t.TempDir()

	exe := write(t, dir, "run.sh", []byte("#!/bin/sh\n"), 0o755)
	tags := Identify(exe)
	assert.True(t, tags.Has("executable"))
	assert.False(t, tags.Has("non-executable"))

	plain := write(t, dir, "lib.sh", []byte("x=1\n"), 0o644)
	tags = Identify(plain)
	assert.True(t, tags.Has("non-executable"))
}

func TestIdentifyBinary(t *testing.T) {
	dir := t.TempDir()

	bin := write(t, dir, "blob.dat", []byte{0x00, 0x01, 0x02, 0xff}, 0o644)
	tags := Identify(bin)
	assert.True(t, tags.Has("binary"))
	assert.False(t, tags.Has("text"))

	png := write(t, dir, "img.png", []byte("not really an image"), 0o644)
	assert.True(t, Identify(png).Has("binary"))
}

func TestIdentifySymlinkAndDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	dir := t.TempDir()

	target := write(t, dir, "target.txt", []byte("x"), 0o644)
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	tags := Identify(link)
	assert.True(t, tags.Has("symlink"))
	assert.False(t, tags.Has("file"))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.True(t, Identify(sub).Has("directory"))
}

func TestTagSetOperations(t *testing.T) {
	tags := Tags{"file": true, "python": true, "text": true}

	assert.True(t, tags.HasAll([]string{"file", "python"}))
	assert.False(t, tags.HasAll([]string{"file", "yaml"}))

	assert.True(t, tags.HasAny([]string{"yaml", "python"}))
	assert.True(t, tags.HasAny(nil), "empty types_or matches")
	assert.False(t, tags.HasAny([]string{"yaml", "json"}))

	assert.True(t, tags.HasNone([]string{"yaml"}))
	assert.False(t, tags.HasNone([]string{"python"}))

	assert.Equal(t, []string{"file", "python", "text"}, tags.Sorted())
}
