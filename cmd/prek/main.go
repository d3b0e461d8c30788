// Package main is the prek command-line tool: a git-hook orchestrator that
// discovers per-project hook configurations, provisions isolated toolchain
// environments, and runs hooks against candidate files.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/internal/commands"
)

// Version information set by the release pipeline.
var (
	version = "dev"
	commit  = "none"    //nolint:unused // set by the release pipeline
	date    = "unknown" //nolint:unused // set by the release pipeline
)

func main() {
	commands.Version = version

	c := cli.NewCLI("prek", version)
	c.Args = os.Args[1:]
	c.HelpFunc = topLevelHelp
	c.Commands = map[string]cli.CommandFactory{
		"install":           commands.InstallCommandFactory,
		"install-hooks":     commands.InstallHooksCommandFactory,
		"run":               commands.RunCommandFactory,
		"list":              commands.ListCommandFactory,
		"uninstall":         commands.UninstallCommandFactory,
		"validate-config":   commands.ValidateConfigCommandFactory,
		"validate-manifest": commands.ValidateManifestCommandFactory,
		"sample-config":     commands.SampleConfigCommandFactory,
		"auto-update":       commands.AutoupdateCommandFactory,
		"cache":             commands.CacheCommandFactory,
		"try-repo":          commands.TryRepoCommandFactory,
		"util":              commands.UtilCommandFactory,
		"self":              commands.SelfCommandFactory,
		"hook-impl":         commands.HookImplCommandFactory,
	}
	c.Commands["help"] = commands.HelpCommandFactory(topLevelHelp(c.Commands))

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitStatus)
}

// topLevelHelp renders the root usage text with commands in alphabetical
// order, hiding the internal ones.
func topLevelHelp(cmdFactories map[string]cli.CommandFactory) string {
	var names []string
	for name := range cmdFactories {
		if name != "hook-impl" && name != "help" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: prek [-h] [--version] {")
	b.WriteString(strings.Join(names, ","))
	b.WriteString("} ...\n\n")
	b.WriteString("A git-hook orchestrator for multi-project workspaces.\n\ncommands:\n")

	for _, name := range names {
		factory := cmdFactories[name]
		cmd, err := factory()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "    %-19s %s\n", name, cmd.Synopsis())
	}

	b.WriteString(`
optional arguments:
  -h, --help            show this help message and exit
  --version             show the version number and exit
`)
	return b.String()
}
