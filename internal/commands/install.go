package commands

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/git"
)

// InstallCommand writes the git hook shims.
type InstallCommand struct{}

// InstallOptions holds the install command's flags.
type InstallOptions struct {
	CommonOptions
	HookTypeOptions
	InstallHooks bool `long:"install-hooks" description:"Also provision every hook environment now"`
	Overwrite    bool `long:"overwrite"     short:"f" description:"Replace existing hook scripts"`
}

// hookShim is the script written into .git/hooks/<stage>: it resolves the
// tool from PATH, falling back to the binary that performed the install.
const hookShim = `#!/bin/sh
# Installed by prek. Invokes the hook orchestrator for this stage.
if command -v prek >/dev/null 2>&1; then
    exec prek hook-impl --hook-type=%s -- "$@"
else
    exec %q hook-impl --hook-type=%s -- "$@"
fi
`

// Run executes install.
func (c *InstallCommand) Run(args []string) int {
	var opts InstallOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	if err := install(&opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func install(opts *InstallOptions) error {
	rc, err := openRuntime(&opts.CommonOptions, true)
	if err != nil {
		return err
	}

	types, err := opts.HookTypeOptions.Resolve(rc.Ws)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate own binary: %w", err)
	}

	for _, hookType := range types {
		if rc.Repo.HasHook(hookType) && !opts.Overwrite {
			fmt.Printf("[WARN] hook %s already exists, use --overwrite to replace it\n", hookType)
			continue
		}
		script := fmt.Sprintf(hookShim, hookType, self, hookType)
		if err := rc.Repo.InstallHook(hookType, script); err != nil {
			return err
		}
		fmt.Printf("prek installed at .git/hooks/%s\n", hookType)
	}

	if opts.InstallHooks {
		return installAllHookEnvs(rc)
	}
	return nil
}

// Help returns the install help text.
func (c *InstallCommand) Help() string {
	var opts InstallOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "install",
		Description: "Install the git hook shims for this repository.",
		Examples: []Example{
			{Command: "prek install", Description: "Install the pre-commit shim"},
			{Command: "prek install -t pre-push", Description: "Install the pre-push shim"},
			{Command: "prek install --install-hooks", Description: "Install shims and provision environments"},
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *InstallCommand) Synopsis() string { return "Install the git hook shims" }

// InstallCommandFactory creates the command.
func InstallCommandFactory() (cli.Command, error) {
	return &InstallCommand{}, nil
}

// UninstallCommand removes installed shims.
type UninstallCommand struct{}

// UninstallOptions holds the uninstall command's flags.
type UninstallOptions struct {
	CommonOptions
	HookTypeOptions
}

// Run executes uninstall.
func (c *UninstallCommand) Run(args []string) int {
	var opts UninstallOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	if err := opts.ApplyCd(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	repo, err := git.NewRepository("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	types, err := opts.HookTypeOptions.Resolve(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, hookType := range types {
		if err := repo.UninstallHook(hookType); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("prek uninstalled from .git/hooks/%s\n", hookType)
	}
	return 0
}

// Help returns the uninstall help text.
func (c *UninstallCommand) Help() string {
	var opts UninstallOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{Name: "uninstall", Description: "Remove the git hook shims."}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *UninstallCommand) Synopsis() string { return "Remove the git hook shims" }

// UninstallCommandFactory creates the command.
func UninstallCommandFactory() (cli.Command, error) {
	return &UninstallCommand{}, nil
}
