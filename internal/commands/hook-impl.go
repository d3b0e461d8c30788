package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
)

// Environment variables tolerating a missing config when git invokes the
// shim; the primary name wins over the legacy fallback.
const (
	AllowNoConfigEnvVar         = "PREK_ALLOW_NO_CONFIG"
	AllowNoConfigEnvVarFallback = "PRE_COMMIT_ALLOW_NO_CONFIG"
)

// HookImplCommand is the internal entry point the installed git shim
// invokes: it maps the git stage onto a run.
type HookImplCommand struct{}

// HookImplOptions holds the hook-impl flags.
type HookImplOptions struct {
	CommonOptions
	HookType string `long:"hook-type" description:"Git stage being run" required:"true"`
}

// Run executes hook-impl.
func (c *HookImplCommand) Run(args []string) int {
	var opts HookImplOptions
	gitArgs, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	if !configPresent(&opts.CommonOptions) {
		if allowNoConfig() {
			return 0
		}
		fmt.Fprintf(os.Stderr,
			"No configuration file was found.\n"+
				"Set %s=1 to allow commits without one, or run `prek uninstall`.\n",
			AllowNoConfigEnvVar)
		return 1
	}

	runOpts := RunOptions{CommonOptions: opts.CommonOptions, HookStage: opts.HookType}
	if opts.HookType == "pre-push" {
		// git feeds the remote name/url on argv and the ref range on
		// stdin; diff against the remote tracking branch when possible.
		runOpts.FromRef, runOpts.ToRef = prePushRefs(gitArgs)
	}

	exit, err := runHooks(&runOpts, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exit
}

func configPresent(opts *CommonOptions) bool {
	if err := opts.ApplyCd(); err != nil {
		return false
	}
	if opts.Config != "" {
		_, err := os.Stat(opts.Config)
		return err == nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	for dir := cwd; ; {
		if config.FindConfigFile(dir) != "" {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func allowNoConfig() bool {
	if v := os.Getenv(AllowNoConfigEnvVar); v != "" {
		return v == "1"
	}
	return os.Getenv(AllowNoConfigEnvVarFallback) == "1"
}

// prePushRefs extracts the local/remote refs git hands to pre-push hooks.
func prePushRefs(gitArgs []string) (fromRef, toRef string) {
	// argv: <remote-name> <remote-url>; the revision range arrives on
	// stdin as "<local-ref> <local-sha> <remote-ref> <remote-sha>".
	var localRef, localSha, remoteRef, remoteSha string
	if _, err := fmt.Fscan(os.Stdin, &localRef, &localSha, &remoteRef, &remoteSha); err != nil {
		return "", ""
	}
	_ = gitArgs
	if remoteSha == "0000000000000000000000000000000000000000" {
		return "", ""
	}
	return remoteSha, localSha
}

// Help returns the hook-impl help text.
func (c *HookImplCommand) Help() string {
	var opts HookImplOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "hook-impl",
		Description: "Internal command invoked by the installed git shim.",
		Notes: []string{
			"Not intended to be called directly; `prek install` writes shims that invoke it.",
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *HookImplCommand) Synopsis() string { return "Internal git shim entry point" }

// HookImplCommandFactory creates the command.
func HookImplCommandFactory() (cli.Command, error) {
	return &HookImplCommand{}, nil
}
