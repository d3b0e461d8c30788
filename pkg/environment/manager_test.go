package environment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/language"
	"github.com/shaneholloman/prek/pkg/store"
)

// countingBackend records installs so the idempotence properties can be
// asserted without any real toolchain.
type countingBackend struct {
	installs atomic.Int32
	healthy  atomic.Bool
}

func (b *countingBackend) Name() string   { return "counting" }
func (b *countingBackend) NeedsEnv() bool { return true }

func (b *countingBackend) Discover(_ context.Context, _ language.VersionRequest) (*language.Toolchain, error) {
	return &language.Toolchain{Language: "counting", Version: "1.0.0"}, nil
}

func (b *countingBackend) Install(_ context.Context, _ language.VersionRequest) (*language.Toolchain, error) {
	return nil, language.ErrNoDownload
}

func (b *countingBackend) ProvisionEnv(_ context.Context, envPath, _ string, _ config.Hook, _ *language.Toolchain) error {
	b.installs.Add(1)
	b.healthy.Store(true)
	return os.WriteFile(filepath.Join(envPath, "marker"), []byte("ok"), 0o600)
}

func (b *countingBackend) HealthCheck(_ context.Context, env *language.Env) bool {
	if !b.healthy.Load() {
		return false
	}
	_, err := os.Stat(filepath.Join(env.Path, "marker"))
	return err == nil
}

func (b *countingBackend) BuildCommand(_ *language.Env, hook config.Hook, _ []string) (language.Command, error) {
	return language.Command{Argv: []string{hook.Entry}}, nil
}

func newManagerWithBackend(t *testing.T, b language.Backend) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	// Registries are closed; tests reach the backend through a manager
	// whose registry resolves the test language.
	reg := language.NewRegistryForTesting(map[string]language.Backend{"counting": b})
	return NewManager(s, reg), s
}

func TestEnsureEnvInstallsExactlyOnce(t *testing.T) {
	backend := &countingBackend{}
	m, _ := newManagerWithBackend(t, backend)
	hook := config.Hook{ID: "h", Language: "counting"}

	env1, err := m.EnsureEnv(context.Background(), hook, "", "default")
	require.NoError(t, err)
	env2, err := m.EnsureEnv(context.Background(), hook, "", "default")
	require.NoError(t, err)

	assert.Equal(t, env1.Path, env2.Path)
	assert.Equal(t, int32(1), backend.installs.Load())

	rec, err := store.ReadEnvRecord(env1.Path)
	require.NoError(t, err)
	assert.True(t, rec.HealthOK)
	assert.Equal(t, "counting", rec.Language)
}

func TestEnsureEnvReinstallsWhenUnhealthy(t *testing.T) {
	backend := &countingBackend{}
	m, _ := newManagerWithBackend(t, backend)
	hook := config.Hook{ID: "h", Language: "counting"}

	env, err := m.EnsureEnv(context.Background(), hook, "", "default")
	require.NoError(t, err)

	// Simulate a corrupted env: health check starts failing and the
	// in-process handle cache is dropped (new manager = new process).
	backend.healthy.Store(false)
	require.NoError(t, os.Remove(filepath.Join(env.Path, "marker")))

	s, _ := store.Open(filepath.Dir(filepath.Dir(env.Path))) // env dir lives at <root>/envs/<key>
	m2 := NewManager(s, language.NewRegistryForTesting(map[string]language.Backend{"counting": backend}))

	_, err = m2.EnsureEnv(context.Background(), hook, "", "default")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.installs.Load())
}

func TestEnsureEnvConcurrentSameKey(t *testing.T) {
	backend := &countingBackend{}
	m, _ := newManagerWithBackend(t, backend)
	hook := config.Hook{ID: "h", Language: "counting"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EnsureEnv(context.Background(), hook, "", "default")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), backend.installs.Load())
}

func TestEnvKeyDisjointForDifferentDeps(t *testing.T) {
	a := EnvKey(config.Hook{Language: "counting"}, "", "default")
	b := EnvKey(config.Hook{Language: "counting", AdditionalDeps: []string{"x"}}, "", "default")
	assert.NotEqual(t, a, b)

	// Dep order does not change the key.
	c := EnvKey(config.Hook{Language: "counting", AdditionalDeps: []string{"b", "a"}}, "", "default")
	d := EnvKey(config.Hook{Language: "counting", AdditionalDeps: []string{"a", "b"}}, "", "default")
	assert.Equal(t, c, d)
}

func TestEnvLessBackendSkipsStore(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	m := NewManager(s, language.NewRegistry(nil))

	env, err := m.EnsureEnv(context.Background(), config.Hook{ID: "x", Language: "system"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, env.Path)
}
