// Package environment maps hooks onto installed environment directories in
// the store: at-most-one installer per env key across processes, a health
// check before every reuse, and cleanup of partial installs.
package environment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/language"
	"github.com/shaneholloman/prek/pkg/store"
)

// Manager provisions and caches hook environments.
type Manager struct {
	store    *store.Store
	registry *language.Registry

	mu    sync.Mutex
	cache map[string]*language.Env // env key → handle, shared-immutable once built
}

// NewManager builds a Manager over s and reg.
func NewManager(s *store.Store, reg *language.Registry) *Manager {
	return &Manager{store: s, registry: reg, cache: make(map[string]*language.Env)}
}

// EnvKey computes the store key for a hook's environment:
// (language, normalized version request, install-source hash, sorted deps).
func EnvKey(hook config.Hook, repoPath, normalizedVersion string) string {
	return store.EnvKey(hook.Language, normalizedVersion, installHash(repoPath), hook.AdditionalDeps)
}

// installHash fingerprints the install source (the hook repo checkout, or
// nothing for local hooks).
func installHash(repoPath string) string {
	if repoPath == "" {
		return "local"
	}
	sum := sha256.Sum256([]byte(repoPath))
	return hex.EncodeToString(sum[:])[:16]
}

// EnsureEnv returns a ready environment for hook, installing it on first
// need. repoPath is the hook repo checkout in the store ("" for local
// hooks). versionRequest is the hook's effective language_version.
//
// Concurrent calls for disjoint env keys proceed in parallel; calls for the
// same key serialize on the store's env lock, and exactly one performs the
// install.
func (m *Manager) EnsureEnv(ctx context.Context, hook config.Hook, repoPath, versionRequest string) (*language.Env, error) {
	backend, err := m.registry.Get(hook.Language)
	if err != nil {
		return nil, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	req, err := language.ParseVersionRequest(versionRequest)
	if err != nil {
		return nil, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	if !backend.NeedsEnv() {
		return &language.Env{Language: hook.Language, Version: req.Normalized(), RepoPath: repoPath}, nil
	}

	key := EnvKey(hook, repoPath, req.Normalized())

	m.mu.Lock()
	if env, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return env, nil
	}
	m.mu.Unlock()

	lock, err := m.store.LockExclusive(ctx, store.KindEnv, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	envPath := m.store.PathFor(store.KindEnv, key)
	env, err := m.reuseOrInstall(ctx, backend, hook, repoPath, req, envPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = env
	m.mu.Unlock()

	_ = m.store.RecordLastUsed(envPath)
	return env, nil
}

func (m *Manager) reuseOrInstall(
	ctx context.Context,
	backend language.Backend,
	hook config.Hook,
	repoPath string,
	req language.VersionRequest,
	envPath string,
) (*language.Env, error) {
	env := &language.Env{
		Language: hook.Language,
		Version:  req.Normalized(),
		Path:     envPath,
		RepoPath: repoPath,
	}

	if rec, err := store.ReadEnvRecord(envPath); err == nil && rec.HealthOK {
		if backend.HealthCheck(ctx, env) {
			if tc, err := backend.Discover(ctx, req); err == nil && tc != nil {
				env.Toolchain = tc
			}
			return env, nil
		}
		// The record claimed health but the check failed: reinstall.
		_ = store.MarkUnhealthy(envPath)
	}

	// Clean any partial or unhealthy directory before installing.
	if err := os.RemoveAll(envPath); err != nil {
		return nil, fmt.Errorf("failed to clear stale environment: %w", err)
	}

	tc, err := m.resolveToolchain(ctx, backend, hook, req)
	if err != nil {
		return nil, err
	}
	env.Toolchain = tc

	if err := os.MkdirAll(envPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create environment directory: %w", err)
	}
	if err := backend.ProvisionEnv(ctx, envPath, repoPath, hook, tc); err != nil {
		// Partial state never survives a failed install.
		_ = os.RemoveAll(envPath)
		return nil, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	rec := store.EnvRecord{
		Language:    hook.Language,
		Version:     req.Normalized(),
		Deps:        sortedDeps(hook.AdditionalDeps),
		InstallHash: installHash(repoPath),
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
		HealthOK:    true,
	}
	if err := store.WriteEnvRecord(envPath, rec); err != nil {
		_ = os.RemoveAll(envPath)
		return nil, err
	}
	return env, nil
}

// resolveToolchain discovers a matching toolchain, downloading one when the
// backend supports it and the request allows it.
func (m *Manager) resolveToolchain(
	ctx context.Context,
	backend language.Backend,
	hook config.Hook,
	req language.VersionRequest,
) (*language.Toolchain, error) {
	tc, err := backend.Discover(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("hook %s: toolchain discovery failed: %w", hook.ID, err)
	}
	if tc != nil {
		return tc, nil
	}
	if req.IsSystem() {
		return nil, fmt.Errorf("hook %s (%s): %w: language_version is %q, downloads disabled",
			hook.ID, hook.Language, language.ErrToolchainNotFound, language.VersionSystem)
	}

	tc, err = backend.Install(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("hook %s (%s): %w", hook.ID, hook.Language, err)
	}
	return tc, nil
}

func sortedDeps(deps []string) []string {
	out := append([]string(nil), deps...)
	sort.Strings(out)
	return out
}
