package language

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shaneholloman/prek/pkg/config"
)

// systemBackend is the passthrough: no managed environment, the entry runs
// as-is against the caller's PATH.
type systemBackend struct{}

func newSystemBackend() *systemBackend { return &systemBackend{} }

func (b *systemBackend) Name() string   { return config.LanguageSystem }
func (b *systemBackend) NeedsEnv() bool { return false }

func (b *systemBackend) Discover(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return &Toolchain{Language: config.LanguageSystem}, nil
}

func (b *systemBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *systemBackend) ProvisionEnv(_ context.Context, _, _ string, _ config.Hook, _ *Toolchain) error {
	return nil
}

func (b *systemBackend) HealthCheck(_ context.Context, _ *Env) bool { return true }

func (b *systemBackend) BuildCommand(_ *Env, hook config.Hook, _ []string) (Command, error) {
	return baseCommand(hook, "")
}

// scriptBackend runs a script shipped with the hook repo: the entry is a
// path relative to the repo checkout for remote hooks, relative to the
// invocation directory for local ones.
type scriptBackend struct{}

func newScriptBackend() *scriptBackend { return &scriptBackend{} }

func (b *scriptBackend) Name() string   { return "script" }
func (b *scriptBackend) NeedsEnv() bool { return false }

func (b *scriptBackend) Discover(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return &Toolchain{Language: "script"}, nil
}

func (b *scriptBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *scriptBackend) ProvisionEnv(_ context.Context, _, _ string, _ config.Hook, _ *Toolchain) error {
	return nil
}

func (b *scriptBackend) HealthCheck(_ context.Context, _ *Env) bool { return true }

func (b *scriptBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}
	if env != nil && env.RepoPath != "" && !filepath.IsAbs(argv[0]) {
		argv[0] = filepath.Join(env.RepoPath, argv[0])
	}
	return Command{Argv: append(argv, hook.Args...), Env: map[string]string{}}, nil
}
