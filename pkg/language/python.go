package language

import (
	"bufio"
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

// UVSourceEnvVar selects how the Python installer tool is acquired:
// "system" (PATH only), "download" (store-managed copy), or "auto".
const UVSourceEnvVar = "PREK_UV_SOURCE"

// defaultPythonVersions pins the exact download per requested minor.
var defaultPythonVersions = map[string]string{
	"3":    "3.12.3",
	"3.9":  "3.9.19",
	"3.10": "3.10.14",
	"3.11": "3.11.9",
	"3.12": "3.12.3",
}

type pythonBackend struct {
	downloader *toolchain.Downloader
}

func newPythonBackend(d *toolchain.Downloader) *pythonBackend {
	return &pythonBackend{downloader: d}
}

func (b *pythonBackend) Name() string   { return "python" }
func (b *pythonBackend) NeedsEnv() bool { return true }

func (b *pythonBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	candidates := []string{"python3", "python"}
	if req.IsNumeric() {
		candidates = append([]string{"python" + req.Normalized()}, candidates...)
	}

	for _, name := range candidates {
		exe, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		version, err := pythonVersion(ctx, exe)
		if err != nil || !req.Matches(version) {
			continue
		}
		return &Toolchain{Language: "python", Version: version, Executable: exe}, nil
	}

	// Well-known version-manager location: ~/.pyenv/versions/<v>/bin.
	if home, err := os.UserHomeDir(); err == nil {
		versionsDir := filepath.Join(home, ".pyenv", "versions")
		entries, _ := os.ReadDir(versionsDir)
		for _, entry := range entries {
			if !req.Matches(entry.Name()) {
				continue
			}
			exe := filepath.Join(versionsDir, entry.Name(), "bin", "python")
			if _, err := os.Stat(exe); err == nil {
				return &Toolchain{Language: "python", Version: entry.Name(), Dir: filepath.Dir(filepath.Dir(exe)), Executable: exe}, nil
			}
		}
	}
	return nil, nil
}

func (b *pythonBackend) Install(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	if req.IsSystem() {
		return nil, ErrToolchainNotFound
	}

	version := resolveExactVersion(req, defaultPythonVersions, defaultPythonVersions["3"])
	url, ok := toolchain.PythonDownloadURL(version)
	if !ok {
		return nil, fmt.Errorf("python %s: no download available for this platform: %w", version, ErrToolchainNotFound)
	}

	dir, err := b.downloader.Fetch(ctx, "python", version, url, true)
	if err != nil {
		return nil, fmt.Errorf("failed to install python %s: %w", version, err)
	}

	exe := filepath.Join(dir, "bin", "python3")
	if runtime.GOOS == "windows" {
		exe = filepath.Join(dir, "python.exe")
	}
	return &Toolchain{Language: "python", Version: version, Dir: dir, Executable: exe}, nil
}

func (b *pythonBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, tc *Toolchain) error {
	uv, err := b.uvExecutable(ctx)
	if err != nil {
		return err
	}

	if _, err := runOutput(ctx, "", uv, "venv", "--python", tc.Executable, envPath); err != nil {
		return fmt.Errorf("failed to create virtualenv: %w", err)
	}

	install := []string{uv, "pip", "install", "--python", envPython(envPath)}
	if repoPath != "" {
		install = append(install, repoPath)
	}
	install = append(install, hook.AdditionalDeps...)
	if len(install) > 5 || repoPath != "" {
		if _, err := runOutput(ctx, "", install...); err != nil {
			return fmt.Errorf("failed to install into environment: %w", err)
		}
	}
	return nil
}

func (b *pythonBackend) HealthCheck(ctx context.Context, env *Env) bool {
	_, err := runOutput(ctx, "", envPython(env.Path), "--version")
	return err == nil
}

func (b *pythonBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	binDir := envBinDir(env.Path)
	// A repo-relative script with inline metadata runs through the
	// installer tool directly instead of an installed console script.
	if env.RepoPath != "" && hasInlineScriptMetadata(filepath.Join(env.RepoPath, argv[0])) {
		if uv, uvErr := b.uvExecutable(context.Background()); uvErr == nil {
			argv = append([]string{uv, "run", "--python", envPython(env.Path), filepath.Join(env.RepoPath, argv[0])}, argv[1:]...)
			return Command{Argv: append(argv, hook.Args...), Env: pathPrepend(binDir)}, nil
		}
	}

	if resolved := filepath.Join(binDir, argv[0]); fileExists(resolved) {
		argv[0] = resolved
	}
	return Command{Argv: append(argv, hook.Args...), Env: pythonEnv(env.Path, binDir)}, nil
}

// uvExecutable locates the Python installer tool per PREK_UV_SOURCE.
func (b *pythonBackend) uvExecutable(ctx context.Context) (string, error) {
	source := os.Getenv(UVSourceEnvVar)
	if source == "" {
		source = "auto"
	}

	if source == "system" || source == "auto" {
		if exe, err := exec.LookPath("uv"); err == nil {
			return exe, nil
		}
		if source == "system" {
			return "", fmt.Errorf("uv not found on PATH and %s=system forbids downloading it", UVSourceEnvVar)
		}
	}

	const uvVersion = "0.4.30"
	url, ok := uvDownloadURL(uvVersion)
	if !ok {
		return "", fmt.Errorf("uv: no download available for this platform")
	}
	dir, err := b.downloader.Fetch(ctx, "uv", uvVersion, url, true)
	if err != nil {
		return "", fmt.Errorf("failed to install uv: %w", err)
	}
	exe := filepath.Join(dir, "uv")
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	return exe, nil
}

func uvDownloadURL(version string) (string, bool) {
	var triple string
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		triple = "x86_64-unknown-linux-gnu"
	case "linux/arm64":
		triple = "aarch64-unknown-linux-gnu"
	case "darwin/amd64":
		triple = "x86_64-apple-darwin"
	case "darwin/arm64":
		triple = "aarch64-apple-darwin"
	case "windows/amd64":
		return fmt.Sprintf("https://github.com/astral-sh/uv/releases/download/%s/uv-x86_64-pc-windows-msvc.zip", version), true
	default:
		return "", false
	}
	return fmt.Sprintf("https://github.com/astral-sh/uv/releases/download/%s/uv-%s.tar.gz", version, triple), true
}

func pythonVersion(ctx context.Context, exe string) (string, error) {
	out, err := runOutput(ctx, "", exe, "--version")
	if err != nil {
		return "", err
	}
	// "Python 3.12.3"
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected version output %q", out)
	}
	return fields[len(fields)-1], nil
}

// hasInlineScriptMetadata detects a PEP 723 "# /// script" block near the
// top of a file.
func hasInlineScriptMetadata(path string) bool {
	f, err := os.Open(path) // #nosec G304 -- repo-relative entry
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 16 && scanner.Scan(); i++ {
		if strings.TrimSpace(scanner.Text()) == "# /// script" {
			return true
		}
	}
	return false
}

func envPython(envPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(envPath, "Scripts", "python.exe")
	}
	return filepath.Join(envPath, "bin", "python")
}

func envBinDir(envPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(envPath, "Scripts")
	}
	return filepath.Join(envPath, "bin")
}

func pythonEnv(envPath, binDir string) map[string]string {
	env := pathPrepend(binDir)
	env["VIRTUAL_ENV"] = envPath
	env["PYTHONNOUSERSITE"] = "1"
	return env
}

func pathPrepend(dirs ...string) map[string]string {
	return map[string]string{
		"PATH": strings.Join(dirs, string(os.PathListSeparator)) + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolveExactVersion maps a version request to the exact version to
// download: a pinned patch release for known minors, the request itself
// when already exact, or the backend's fallback for "default".
func resolveExactVersion(req VersionRequest, pins map[string]string, fallback string) string {
	if req.IsNumeric() {
		norm := req.Normalized()
		if pinned, ok := pins[norm]; ok {
			return pinned
		}
		return norm
	}
	return fallback
}
