package language

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/toolchain"
)

var defaultGoVersions = map[string]string{
	"1.21": "1.21.11",
	"1.22": "1.22.4",
}

const fallbackGoVersion = "1.22.4"

type goBackend struct {
	downloader *toolchain.Downloader
}

func newGoBackend(d *toolchain.Downloader) *goBackend {
	return &goBackend{downloader: d}
}

func (b *goBackend) Name() string   { return "golang" }
func (b *goBackend) NeedsEnv() bool { return true }

func (b *goBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	exe, err := exec.LookPath("go")
	if err != nil {
		return nil, nil
	}
	out, err := runOutput(ctx, "", exe, "version")
	if err != nil {
		return nil, nil
	}
	// "go version go1.22.4 linux/amd64"
	version := ""
	for _, field := range strings.Fields(out) {
		if strings.HasPrefix(field, "go1") {
			version = strings.TrimPrefix(field, "go")
			break
		}
	}
	if version == "" || !req.Matches(version) {
		return nil, nil
	}
	return &Toolchain{Language: "golang", Version: version, Executable: exe}, nil
}

func (b *goBackend) Install(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	if req.IsSystem() {
		return nil, ErrToolchainNotFound
	}

	version := resolveExactVersion(req, defaultGoVersions, fallbackGoVersion)
	url, ok := toolchain.GoDownloadURL(version)
	if !ok {
		return nil, fmt.Errorf("go %s: no download available for this platform: %w", version, ErrToolchainNotFound)
	}

	dir, err := b.downloader.Fetch(ctx, "golang", version, url, true)
	if err != nil {
		return nil, fmt.Errorf("failed to install go %s: %w", version, err)
	}

	exe := filepath.Join(dir, "bin", "go")
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	return &Toolchain{Language: "golang", Version: version, Dir: dir, Executable: exe}, nil
}

func (b *goBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, tc *Toolchain) error {
	binDir := filepath.Join(envPath, "bin")
	if err := os.MkdirAll(binDir, 0o750); err != nil {
		return fmt.Errorf("failed to create env bin directory: %w", err)
	}

	goEnv := map[string]string{
		"GOPATH":      filepath.Join(envPath, "gopath"),
		"GOBIN":       binDir,
		"GOTOOLCHAIN": "local",
	}

	if repoPath != "" {
		if err := b.goInstall(ctx, tc, repoPath, goEnv, "./..."); err != nil {
			return err
		}
	}
	for _, dep := range hook.AdditionalDeps {
		if !strings.Contains(dep, "@") {
			dep += "@latest"
		}
		if err := b.goInstall(ctx, tc, "", goEnv, dep); err != nil {
			return err
		}
	}
	return nil
}

func (b *goBackend) goInstall(ctx context.Context, tc *Toolchain, dir string, goEnv map[string]string, target string) error {
	cmd := exec.CommandContext(ctx, tc.Executable, "install", target) // #nosec G204 -- store-internal install
	cmd.Dir = dir
	cmd.Env = mergeOSEnv(goEnv)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go install %s failed: %w: %s", target, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *goBackend) HealthCheck(ctx context.Context, env *Env) bool {
	entries, err := os.ReadDir(filepath.Join(env.Path, "bin"))
	return err == nil && len(entries) > 0
}

func (b *goBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
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
