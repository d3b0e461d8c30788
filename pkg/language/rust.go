package language

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/toolchain"
)

var defaultRustVersions = map[string]string{
	"1.77": "1.77.2",
	"1.78": "1.78.0",
}

const fallbackRustVersion = "1.78.0"

type rustBackend struct {
	downloader *toolchain.Downloader
}

func newRustBackend(d *toolchain.Downloader) *rustBackend {
	return &rustBackend{downloader: d}
}

func (b *rustBackend) Name() string   { return "rust" }
func (b *rustBackend) NeedsEnv() bool { return true }

func (b *rustBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	exe, err := exec.LookPath("cargo")
	if err != nil {
		return nil, nil
	}
	out, err := runOutput(ctx, "", exe, "--version")
	if err != nil {
		return nil, nil
	}
	// "cargo 1.78.0 (54d8815d0 2024-03-26)"
	fields := strings.Fields(out)
	if len(fields) < 2 || !req.Matches(fields[1]) {
		return nil, nil
	}
	return &Toolchain{Language: "rust", Version: fields[1], Executable: exe}, nil
}

func (b *rustBackend) Install(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	if req.IsSystem() {
		return nil, ErrToolchainNotFound
	}

	version := resolveExactVersion(req, defaultRustVersions, fallbackRustVersion)
	url, ok := toolchain.RustDownloadURL(version)
	if !ok {
		return nil, fmt.Errorf("rust %s: no download available for this platform: %w", version, ErrToolchainNotFound)
	}

	dir, err := b.downloader.Fetch(ctx, "rust", version, url, true)
	if err != nil {
		return nil, fmt.Errorf("failed to install rust %s: %w", version, err)
	}

	// The standalone archive keeps each component under its own top-level
	// directory; cargo and rustc live side by side.
	exe := filepath.Join(dir, "cargo", "bin", "cargo")
	return &Toolchain{Language: "rust", Version: version, Dir: dir, Executable: exe}, nil
}

func (b *rustBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, tc *Toolchain) error {
	cargoEnv := map[string]string{}
	if tc.Dir != "" {
		cargoEnv = pathPrepend(
			filepath.Join(tc.Dir, "cargo", "bin"),
			filepath.Join(tc.Dir, "rustc", "bin"),
		)
	}

	if repoPath != "" {
		args := []string{"install", "--bins", "--root", envPath, "--path", repoPath}
		if err := b.cargo(ctx, tc, cargoEnv, args...); err != nil {
			return err
		}
	}
	for _, dep := range hook.AdditionalDeps {
		name, version, hasVersion := strings.Cut(dep, ":")
		args := []string{"install", "--root", envPath, name}
		if hasVersion {
			args = append(args, "--version", version)
		}
		if err := b.cargo(ctx, tc, cargoEnv, args...); err != nil {
			return err
		}
	}
	return nil
}

func (b *rustBackend) cargo(ctx context.Context, tc *Toolchain, extra map[string]string, args ...string) error {
	cmd := exec.CommandContext(ctx, tc.Executable, args...) // #nosec G204 -- store-internal install
	cmd.Env = mergeOSEnv(extra)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cargo %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *rustBackend) HealthCheck(ctx context.Context, env *Env) bool {
	exe := "cargo"
	if env.Toolchain != nil && env.Toolchain.Executable != "" {
		exe = env.Toolchain.Executable
	}
	_, err := runOutput(ctx, "", exe, "--version")
	return err == nil
}

func (b *rustBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	binDir := filepath.Join(env.Path, "bin")
	if resolved := filepath.Join(binDir, argv[0]); fileExists(resolved) {
		argv[0] = resolved
	}
	return Command{Argv: append(argv, hook.Args...), Env: pathPrepend(binDir)}, nil
}
