package language

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
)

// luaBackend provisions through the system's luarocks; no download support.
type luaBackend struct{}

func newLuaBackend() *luaBackend { return &luaBackend{} }

func (b *luaBackend) Name() string   { return "lua" }
func (b *luaBackend) NeedsEnv() bool { return true }

func (b *luaBackend) Discover(ctx context.Context, req VersionRequest) (*Toolchain, error) {
	for _, name := range []string{"lua", "lua5.4", "lua5.3", "luajit"} {
		exe, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		out, _ := runOutput(ctx, "", exe, "-v")
		// "Lua 5.4.6  Copyright ..." on stderr/stdout depending on build.
		version := ""
		if fields := strings.Fields(out); len(fields) >= 2 {
			version = fields[1]
		}
		if version != "" && !req.Matches(version) {
			continue
		}
		return &Toolchain{Language: "lua", Version: version, Executable: exe}, nil
	}
	return nil, nil
}

func (b *luaBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *luaBackend) ProvisionEnv(ctx context.Context, envPath, repoPath string, hook config.Hook, _ *Toolchain) error {
	luarocks, err := exec.LookPath("luarocks")
	if err != nil {
		return fmt.Errorf("luarocks is required for lua hooks: %w", ErrToolchainNotFound)
	}

	if repoPath != "" {
		specs, _ := filepath.Glob(filepath.Join(repoPath, "*.rockspec"))
		for _, spec := range specs {
			cmd := exec.CommandContext(ctx, luarocks, "--tree", envPath, "make", filepath.Base(spec)) // #nosec G204
			cmd.Dir = repoPath
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("luarocks make failed: %w: %s", err, strings.TrimSpace(string(out)))
			}
		}
	}
	for _, dep := range hook.AdditionalDeps {
		cmd := exec.CommandContext(ctx, luarocks, "--tree", envPath, "install", dep) // #nosec G204
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("luarocks install %s failed: %w: %s", dep, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func (b *luaBackend) HealthCheck(ctx context.Context, _ *Env) bool {
	_, err := exec.LookPath("luarocks")
	if err != nil {
		return false
	}
	_, runErr := runOutput(ctx, "", "luarocks", "--version")
	return runErr == nil
}

func (b *luaBackend) BuildCommand(env *Env, hook config.Hook, _ []string) (Command, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return Command{}, fmt.Errorf("hook %s: %w", hook.ID, err)
	}

	binDir := filepath.Join(env.Path, "bin")
	if resolved := filepath.Join(binDir, argv[0]); fileExists(resolved) {
		argv[0] = resolved
	}
	cmdEnv := pathPrepend(binDir)
	cmdEnv["LUA_PATH"] = filepath.Join(env.Path, "share", "lua", "5.4", "?.lua") + ";;"
	cmdEnv["LUA_CPATH"] = filepath.Join(env.Path, "lib", "lua", "5.4", "?.so") + ";;"
	return Command{Argv: append(argv, hook.Args...), Env: cmdEnv}, nil
}
