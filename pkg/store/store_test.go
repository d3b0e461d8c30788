package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOpenCreatesLayout(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	for _, dir := range []string{"repos", "envs", "toolchains", "patches", "scratch", "locks"} {
		assert.DirExists(t, filepath.Join(root, dir))
	}
}

func TestDefaultHomePrecedence(t *testing.T) {
	t.Setenv("PREK_HOME", "/custom/prek")
	home, err := DefaultHome()
	require.NoError(t, err)
	assert.Equal(t, "/custom/prek", home)

	os.Unsetenv("PREK_HOME")
	t.Setenv("XDG_CACHE_HOME", "/xdg-cache")
	home, err = DefaultHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg-cache", "prek"), home)
}

func TestDefaultHomeTildeExpansion(t *testing.T) {
	t.Setenv("PREK_HOME", "~/prek-cache")
	home, err := DefaultHome()
	require.NoError(t, err)
	userHome, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(userHome, "prek-cache"), home)
}

func TestPathForIsPure(t *testing.T) {
	s := openTestStore(t)
	a := s.PathFor(KindRepo, "abc")
	b := s.PathFor(KindRepo, "abc")
	assert.Equal(t, a, b)
	assert.Equal(t, filepath.Join(s.Root(), "repos", "abc"), a)
	assert.Equal(t, filepath.Join(s.Root(), "envs", "k"), s.PathFor(KindEnv, "k"))
	assert.Equal(t, filepath.Join(s.Root(), "toolchains", "python/3.12.3"),
		s.PathFor(KindToolchain, ToolchainKey("python", "3.12.3")))
}

func TestKeysAreStableAndDisjoint(t *testing.T) {
	assert.Equal(t, RepoKey("u", "r"), RepoKey("u", "r"))
	assert.NotEqual(t, RepoKey("u", "r1"), RepoKey("u", "r2"))

	assert.Equal(t, RepoKey("u", "r"), RepoKeyWithDeps("u", "r", nil))
	assert.NotEqual(t, RepoKey("u", "r"), RepoKeyWithDeps("u", "r", []string{"d"}))
	assert.Equal(t,
		RepoKeyWithDeps("u", "r", []string{"b", "a"}),
		RepoKeyWithDeps("u", "r", []string{"a", "b"}))

	assert.Equal(t,
		EnvKey("python", "3.12", "h", []string{"x", "y"}),
		EnvKey("python", "3.12", "h", []string{"y", "x"}))
	assert.NotEqual(t,
		EnvKey("python", "3.12", "h", nil),
		EnvKey("python", "3.11", "h", nil))
}

func TestLockExclusiveSerializes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []string

	lock, err := s.LockExclusive(ctx, KindEnv, "key-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l2, err := s.LockExclusive(ctx, KindEnv, "key-1")
		assert.NoError(t, err)
		mu.Lock()
		events = append(events, "second-acquired")
		mu.Unlock()
		_ = l2.Release()
	}()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	events = append(events, "first-releasing")
	mu.Unlock()
	require.NoError(t, lock.Release())
	<-done

	assert.Equal(t, []string{"first-releasing", "second-acquired"}, events)
}

func TestLockDisjointKeysDoNotBlock(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	l1, err := s.LockExclusive(ctx, KindEnv, "key-a")
	require.NoError(t, err)
	defer func() { _ = l1.Release() }()

	l2, err := s.LockExclusive(ctx, KindEnv, "key-b")
	require.NoError(t, err)
	_ = l2.Release()
}

func TestEnvRecordRoundTrip(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "env")

	_, err := ReadEnvRecord(envPath)
	assert.True(t, os.IsNotExist(err))

	rec := EnvRecord{Language: "python", Version: "3.12", HealthOK: true, Deps: []string{"a"}}
	require.NoError(t, WriteEnvRecord(envPath, rec))

	got, err := ReadEnvRecord(envPath)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, MarkUnhealthy(envPath))
	got, err = ReadEnvRecord(envPath)
	require.NoError(t, err)
	assert.False(t, got.HealthOK)
}

func TestAtomicRenameReplacesDestination(t *testing.T) {
	s := openTestStore(t)

	scratch, err := s.ScratchDir("test")
	require.NoError(t, err)
	src := filepath.Join(scratch, "payload")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "file"), []byte("new"), 0o644))

	dest := s.PathFor(KindEnv, "target")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale"), []byte("old"), 0o644))

	require.NoError(t, AtomicRename(src, dest))
	assert.FileExists(t, filepath.Join(dest, "file"))
	assert.NoFileExists(t, filepath.Join(dest, "stale"))
}

func TestGarbageCollect(t *testing.T) {
	s := openTestStore(t)

	stale := s.PathFor(KindRepo, "stale")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	kept := s.PathFor(KindRepo, "kept")
	require.NoError(t, os.MkdirAll(kept, 0o755))
	require.NoError(t, os.Chtimes(kept, old, old))

	fresh := s.PathFor(KindEnv, "fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	// Dry run reports without removing.
	result, err := s.GarbageCollect(context.Background(), true, map[string]bool{kept: true}, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemovedRepos)
	assert.DirExists(t, stale)

	result, err = s.GarbageCollect(context.Background(), false, map[string]bool{kept: true}, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemovedRepos)
	assert.Equal(t, 0, result.RemovedEnvs)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, kept, "referenced entries survive")
	assert.DirExists(t, fresh, "recently used entries survive")
}

func TestRecordLastUsed(t *testing.T) {
	s := openTestStore(t)
	dir := s.PathFor(KindEnv, "e")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	assert.True(t, s.LastUsed(dir).IsZero())
	require.NoError(t, s.RecordLastUsed(dir))
	assert.False(t, s.LastUsed(dir).IsZero())
}

func TestClean(t *testing.T) {
	s := openTestStore(t)
	for _, kind := range []Kind{KindRepo, KindEnv, KindToolchain} {
		require.NoError(t, os.MkdirAll(s.PathFor(kind, "x"), 0o755))
	}
	require.NoError(t, s.Clean())

	for _, sub := range []string{"repos", "envs", "toolchains"} {
		entries, err := os.ReadDir(filepath.Join(s.Root(), sub))
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}
