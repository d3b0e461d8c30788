package language

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
)

// ContainerRuntimeEnvVar selects the container runtime: auto (default),
// docker, podman, or container.
const ContainerRuntimeEnvVar = "PREK_CONTAINER_RUNTIME"

// containerRuntime resolves the runtime binary, honoring the override.
func containerRuntime() (string, error) {
	choice := os.Getenv(ContainerRuntimeEnvVar)
	if choice == "" {
		choice = "auto"
	}

	if choice != "auto" {
		exe, err := exec.LookPath(choice)
		if err != nil {
			return "", fmt.Errorf("container runtime %q not found on PATH: %w", choice, err)
		}
		return exe, nil
	}
	for _, name := range []string{"docker", "podman", "container"} {
		if exe, err := exec.LookPath(name); err == nil {
			return exe, nil
		}
	}
	return "", fmt.Errorf("no container runtime found (tried docker, podman, container)")
}

// dockerBackend builds an image from the hook repo's Dockerfile and runs
// the entry inside it with the working directory bind-mounted.
type dockerBackend struct{}

func newDockerBackend() *dockerBackend { return &dockerBackend{} }

func (b *dockerBackend) Name() string   { return "docker" }
func (b *dockerBackend) NeedsEnv() bool { return true }

func (b *dockerBackend) Discover(ctx context.Context, _ VersionRequest) (*Toolchain, error) {
	exe, err := containerRuntime()
	if err != nil {
		return nil, nil
	}
	if _, err := runOutput(ctx, "", exe, "version", "--format", "{{.Client.Version}}"); err != nil {
		// podman and the generic runtime don't all support the docker
		// format string; a plain version probe is enough.
		if _, err := runOutput(ctx, "", exe, "--version"); err != nil {
			return nil, nil
		}
	}
	return &Toolchain{Language: "docker", Executable: exe}, nil
}

func (b *dockerBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

// imageTag derives a stable local tag for the repo's built image.
func imageTag(repoPath string) string {
	sum := sha256.Sum256([]byte(repoPath))
	return "prek-" + hex.EncodeToString(sum[:])[:12]
}

func (b *dockerBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, _ config.Hook, tc *Toolchain) error {
	if repoPath == "" {
		return fmt.Errorf("docker hooks require a hook repository with a Dockerfile")
	}

	tag := imageTag(repoPath)
	cmd := exec.CommandContext(ctx, tc.Executable, "build", "--tag", tag, repoPath) // #nosec G204 -- runtime resolved above
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("image build failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	// The env directory only records which tag to run.
	return os.WriteFile(filepath.Join(envPath, "image-tag"), []byte(tag), 0o600)
}

func (b *dockerBackend) HealthCheck(ctx context.Context, env *Env) bool {
	exe, err := containerRuntime()
	if err != nil {
		return false
	}
	tag, err := os.ReadFile(filepath.Join(env.Path, "image-tag")) // #nosec G304 -- store-internal path
	if err != nil {
		return false
	}
	_, err = runOutput(ctx, "", exe, "image", "inspect", strings.TrimSpace(string(tag)))
	return err == nil
}

func (b *dockerBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	exe, err := containerRuntime()
	if err != nil {
		return Command{}, err
	}
	tag, err := os.ReadFile(filepath.Join(env.Path, "image-tag")) // #nosec G304 -- store-internal path
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: environment has no image tag: %w", hook.ID, err)
	}

	entry, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	argv := append(containerRunArgs(exe), "--entrypoint", entry[0], strings.TrimSpace(string(tag)))
	argv = append(argv, entry[1:]...)
	return Command{Argv: append(argv, hook.Args...), Env: map[string]string{}}, nil
}

// containerRunArgs is the shared run prefix: remove the container on exit
// and bind-mount the caller's working directory as /src.
func containerRunArgs(runtimeExe string) []string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	args := []string{runtimeExe, "run", "--rm", "--volume", cwd + ":/src:rw,Z", "--workdir", "/src"}
	// Match file ownership on rootful runtimes.
	if uid := os.Getuid(); uid >= 0 {
		args = append(args, "--user", fmt.Sprintf("%d:%d", uid, os.Getgid()))
	}
	return args
}

// dockerImageBackend runs a pre-built image; the entry names the image and
// optionally the command inside it.
type dockerImageBackend struct{}

func newDockerImageBackend() *dockerImageBackend { return &dockerImageBackend{} }

func (b *dockerImageBackend) Name() string   { return "docker_image" }
func (b *dockerImageBackend) NeedsEnv() bool { return false }

func (b *dockerImageBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	return (&dockerBackend{}).Discover(ctx, req)
}

func (b *dockerImageBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *dockerImageBackend) ProvisionEnv(_ context.Context, _, _ string, _ config.Hook, _ *Toolchain) error {
	return nil
}

func (b *dockerImageBackend) HealthCheck(_ context.Context, _ *Env) bool { return true }

func (b *dockerImageBackend) BuildCommand(_ *Env, hook config.Hook, _ []string) (Command, error) {
	exe, err := containerRuntime()
	if err != nil {
		return Command{}, err
	}
	entry, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}
	argv := append(containerRunArgs(exe), entry...)
	return Command{Argv: append(argv, hook.Args...), Env: map[string]string{}}, nil
}
