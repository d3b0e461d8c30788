package language

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/toolchain"
)

var defaultNodeVersions = map[string]string{
	"18": "18.20.3",
	"20": "20.14.0",
	"22": "22.3.0",
}

const fallbackNodeVersion = "20.14.0"

type nodeBackend struct {
	downloader *toolchain.Downloader
}

func newNodeBackend(d *toolchain.Downloader) *nodeBackend {
	return &nodeBackend{downloader: d}
}

func (b *nodeBackend) Name() string   { return "node" }
func (b *nodeBackend) NeedsEnv() bool { return true }

func (b *nodeBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	for _, name := range []string{"node", "nodejs"} {
		exe, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		out, err := runOutput(ctx, "", exe, "--version")
		if err != nil {
			continue
		}
		version := strings.TrimPrefix(strings.TrimSpace(out), "v")
		if !req.Matches(version) {
			continue
		}
		return &Toolchain{Language: "node", Version: version, Executable: exe}, nil
	}
	return nil, nil
}

func (b *nodeBackend) Install(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	if req.IsSystem() {
		return nil, ErrToolchainNotFound
	}

	version := resolveExactVersion(req, defaultNodeVersions, fallbackNodeVersion)
	url, ok := toolchain.NodeDownloadURL(version)
	if !ok {
		return nil, fmt.Errorf("node %s: no download available for this platform: %w", version, ErrToolchainNotFound)
	}

	dir, err := b.downloader.Fetch(ctx, "node", version, url, true)
	if err != nil {
		return nil, fmt.Errorf("failed to install node %s: %w", version, err)
	}

	exe := filepath.Join(dir, "bin", "node")
	if runtime.GOOS == "windows" {
		exe = filepath.Join(dir, "node.exe")
	}
	return &Toolchain{Language: "node", Version: version, Dir: dir, Executable: exe}, nil
}

func (b *nodeBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, tc *Toolchain) error {
	npm := b.npmExecutable(tc)

	install := []string{npm, "install", "--global", "--prefix", envPath}
	if repoPath != "" {
		install = append(install, repoPath)
	}
	install = append(install, hook.AdditionalDeps...)

	cmd := exec.CommandContext(ctx, install[0], install[1:]...) // #nosec G204 -- store-internal install
	cmd.Env = mergeOSEnv(pathPrepend(filepath.Dir(tc.Executable)))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("npm install failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *nodeBackend) npmExecutable(tc *Toolchain) string {
	if tc.Dir != "" {
		npm := filepath.Join(tc.Dir, "bin", "npm")
		if runtime.GOOS == "windows" {
			npm = filepath.Join(tc.Dir, "npm.cmd")
		}
		if fileExists(npm) {
			return npm
		}
	}
	return "npm"
}

func (b *nodeBackend) HealthCheck(ctx context.Context, env *Env) bool {
	exe := "node"
	if env.Toolchain != nil && env.Toolchain.Executable != "" {
		exe = env.Toolchain.Executable
	}
	_, err := runOutput(ctx, "", exe, "--version")
	return err == nil
}

func (b *nodeBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	binDir := filepath.Join(env.Path, "bin")
	if runtime.GOOS == "windows" {
		binDir = env.Path
	}
	if resolved := filepath.Join(binDir, argv[0]); fileExists(resolved) {
		argv[0] = resolved
	}

	dirs := []string{binDir}
	if env.Toolchain != nil && env.Toolchain.Executable != "" {
		dirs = append(dirs, filepath.Dir(env.Toolchain.Executable))
	}
	cmdEnv := pathPrepend(dirs...)
	cmdEnv["NODE_PATH"] = filepath.Join(env.Path, "lib", "node_modules")
	return Command{Argv: append(argv, hook.Args...), Env: cmdEnv}, nil
}
