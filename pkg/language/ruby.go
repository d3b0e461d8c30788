package language

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
)

// rubyBackend only accepts a system ruby; there is no toolchain download.
type rubyBackend struct{}

func newRubyBackend() *rubyBackend { return &rubyBackend{} }

func (b *rubyBackend) Name() string   { return "ruby" }
func (b *rubyBackend) NeedsEnv() bool { return true }

func (b *rubyBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	exe, err := exec.LookPath("ruby")
	if err != nil {
		return nil, nil
	}
	out, err := runOutput(ctx, "", exe, "--version")
	if err != nil {
		return nil, nil
	}
	// "ruby 3.3.0 (2023-12-25 revision 5124f9ac75) [x86_64-linux]"
	fields := strings.Fields(out)
	if len(fields) < 2 || !req.Matches(fields[1]) {
		return nil, nil
	}
	return &Toolchain{Language: "ruby", Version: fields[1], Executable: exe}, nil
}

func (b *rubyBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *rubyBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, tc *Toolchain) error {
	gemEnv := map[string]string{"GEM_HOME": envPath}

	if repoPath != "" {
		specs, _ := filepath.Glob(filepath.Join(repoPath, "*.gemspec"))
		for _, spec := range specs {
			build := exec.CommandContext(ctx, "gem", "build", filepath.Base(spec)) // #nosec G204 -- store-internal install
			build.Dir = repoPath
			build.Env = mergeOSEnv(gemEnv)
			if out, err := build.CombinedOutput(); err != nil {
				return fmt.Errorf("gem build failed: %w: %s", err, strings.TrimSpace(string(out)))
			}
		}
		gems, _ := filepath.Glob(filepath.Join(repoPath, "*.gem"))
		for _, gem := range gems {
			if err := b.gemInstall(ctx, envPath, gem); err != nil {
				return err
			}
		}
	}
	for _, dep := range hook.AdditionalDeps {
		if err := b.gemInstall(ctx, envPath, dep); err != nil {
			return err
		}
	}
	return nil
}

func (b *rubyBackend) gemInstall(ctx context.Context, envPath, target string) error {
	cmd := exec.CommandContext(ctx, "gem", "install", "--no-document", "--install-dir", envPath, "--bindir", filepath.Join(envPath, "bin"), target) // #nosec G204
	cmd.Env = mergeOSEnv(map[string]string{"GEM_HOME": envPath})
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gem install %s failed: %w: %s", target, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *rubyBackend) HealthCheck(ctx context.Context, _ *Env) bool {
	_, err := runOutput(ctx, "", "ruby", "--version")
	return err == nil
}

func (b *rubyBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	binDir := filepath.Join(env.Path, "bin")
	if resolved := filepath.Join(binDir, argv[0]); fileExists(resolved) {
		argv[0] = resolved
	}
	cmdEnv := pathPrepend(binDir)
	cmdEnv["GEM_HOME"] = env.Path
	cmdEnv["GEM_PATH"] = env.Path
	return Command{Argv: append(argv, hook.Args...), Env: cmdEnv}, nil
}
