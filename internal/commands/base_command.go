// Package commands implements the CLI surface: one file per subcommand,
// dispatched through the command framework in cmd/prek.
package commands

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/shaneholloman/prek/pkg/environment"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/hook/formatting"
	"github.com/shaneholloman/prek/pkg/language"
	"github.com/shaneholloman/prek/pkg/repository"
	"github.com/shaneholloman/prek/pkg/store"
	"github.com/shaneholloman/prek/pkg/toolchain"
	"github.com/shaneholloman/prek/pkg/workspace"
)

// Version is stamped by the release build; "dev" otherwise.
var Version = "dev"

// BaseCommand provides shared behavior for all commands.
type BaseCommand struct {
	Name        string
	Description string
	Examples    []Example
	Notes       []string
}

// CommonOptions are the flags shared across commands.
type CommonOptions struct {
	Config     string `long:"config"      short:"c" description:"Path to an explicit config file"`
	Cd         string `long:"cd"          short:"C" description:"Change directory before running"`
	Color      string `long:"color"                 description:"Whether to use color in output" choice:"auto" choice:"always" choice:"never" default:"auto"`
	Verbose    []bool `long:"verbose"     short:"v" description:"Increase verbosity (repeatable)"`
	Quiet      []bool `long:"quiet"       short:"q" description:"Decrease verbosity (repeatable)"`
	LogFile    string `long:"log-file"              description:"Log file path (accepted; no output is written to it)"`
	Refresh    bool   `long:"refresh"               description:"Skip the workspace discovery cache"`
	NoProgress bool   `long:"no-progress"           description:"Disable progress output"`
	Help       bool   `long:"help"        short:"h" description:"Show this help message"`
}

// Printer builds the status printer for these options.
func (o *CommonOptions) Printer() *formatting.Printer {
	return formatting.NewPrinter(o.Color, len(o.Verbose) > 0, len(o.Quiet))
}

// ApplyCd honors --cd before any discovery happens.
func (o *CommonOptions) ApplyCd() error {
	if o.Cd == "" {
		return nil
	}
	if err := os.Chdir(o.Cd); err != nil {
		return fmt.Errorf("failed to change directory to %s: %w", o.Cd, err)
	}
	return nil
}

// ParseArgsWithHelp parses args into opts, treating a help request as a
// clean exit.
func (bc *BaseCommand) ParseArgsWithHelp(opts any, args []string) ([]string, error) {
	parser := flags.NewParser(opts, flags.Default)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("error parsing arguments: %w", err)
	}
	return remaining, nil
}

// GenerateHelp renders the command's help text.
func (bc *BaseCommand) GenerateHelp(parser *flags.Parser) string {
	formatter := &HelpFormatter{
		Command:     bc.Name,
		Description: bc.Description,
		Examples:    bc.Examples,
		Notes:       bc.Notes,
	}
	return formatter.FormatHelp(parser)
}

// runtimeContext wires the process-wide values commands operate on: the
// store, the language registry, the git repository, and the workspace.
type runtimeContext struct {
	Store    *store.Store
	Registry *language.Registry
	Envs     *environment.Manager
	RepoOps  *repository.Operations
	Repo     *git.Repository
	Ws       *workspace.Workspace
	Log      *log.Logger
}

// openRuntime builds the context. discover controls whether a workspace is
// required; cache-only commands pass false.
func openRuntime(opts *CommonOptions, discover bool) (*runtimeContext, error) {
	if err := opts.ApplyCd(); err != nil {
		return nil, err
	}

	s, err := store.Open("")
	if err != nil {
		return nil, err
	}

	registry := language.NewRegistry(toolchain.NewDownloader(s))
	rc := &runtimeContext{
		Store:    s,
		Registry: registry,
		Envs:     environment.NewManager(s, registry),
		RepoOps:  repository.NewRepositoryOperations(s),
		Log:      initRunLog(s.Root()),
	}
	if !discover {
		return rc, nil
	}

	rc.Repo, err = git.NewRepository("")
	if err != nil {
		return nil, err
	}
	logf(rc.Log, "repository root: %s", rc.Repo.Root)

	rc.Ws, err = workspace.Discover(workspace.DiscoverOptions{
		ConfigPath:  opts.Config,
		ToolVersion: Version,
		CacheDir:    s.Root(),
		Refresh:     opts.Refresh,
	})
	if err != nil {
		return nil, err
	}

	for _, p := range rc.Ws.Projects {
		_ = s.MarkConfigUsed(p.ConfigPath)
	}
	return rc, nil
}

// Supported git hook types for install/uninstall.
var validHookTypes = map[string]bool{
	"pre-commit": true, "pre-merge-commit": true, "pre-push": true,
	"prepare-commit-msg": true, "commit-msg": true, "post-checkout": true,
	"post-commit": true, "post-merge": true, "post-rewrite": true,
	"pre-rebase": true, "pre-auto-gc": true,
}

// HookTypeOptions is the repeatable --hook-type flag.
type HookTypeOptions struct {
	HookTypes []string `short:"t" long:"hook-type" description:"Hook type to install (repeatable)"`
}

// Resolve returns the requested hook types, defaulting from the workspace
// root config's default_install_hook_types, then to pre-commit.
func (hto *HookTypeOptions) Resolve(ws *workspace.Workspace) ([]string, error) {
	types := hto.HookTypes
	if len(types) == 0 && ws != nil {
		if root := ws.RootProject(); root != nil {
			types = root.Config.DefaultInstallHookTypes
		}
	}
	if len(types) == 0 {
		types = []string{"pre-commit"}
	}
	for _, t := range types {
		if !validHookTypes[t] {
			return nil, fmt.Errorf("unsupported hook type: %s", t)
		}
	}
	return types, nil
}
