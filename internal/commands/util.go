package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/identify"
)

// UtilCommand groups the small maintenance helpers:
// identify, init-template-dir, yaml-to-toml.
type UtilCommand struct{}

// UtilOptions holds the util command's flags.
type UtilOptions struct {
	CommonOptions
	HookTypeOptions
}

// Run executes util <subcommand>.
func (c *UtilCommand) Run(args []string) int {
	var opts UtilOptions
	remaining, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(remaining) == 0 {
		fmt.Fprintln(os.Stderr, "Error: util requires a subcommand: identify, init-template-dir, yaml-to-toml")
		return 1
	}

	switch remaining[0] {
	case "identify":
		return utilIdentify(remaining[1:])
	case "init-template-dir":
		return utilInitTemplateDir(&opts, remaining[1:])
	case "yaml-to-toml":
		return utilYamlToToml(remaining[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown util subcommand %q\n", remaining[0])
		return 1
	}
}

// utilIdentify prints the identifier tags for each path.
func utilIdentify(paths []string) int {
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: identify requires at least one path")
		return 1
	}
	for _, p := range paths {
		tags := identify.Identify(p)
		fmt.Printf("%s: %s\n", p, strings.Join(tags.Sorted(), ", "))
	}
	return 0
}

// utilInitTemplateDir writes hook shims into a directory intended for
// git's init.templateDir, so new clones get the shims automatically.
func utilInitTemplateDir(opts *UtilOptions, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: init-template-dir requires a target directory")
		return 1
	}
	target := args[0]

	types, err := opts.HookTypeOptions.Resolve(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	hooksDir := filepath.Join(target, "hooks")
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	for _, hookType := range types {
		script := fmt.Sprintf(hookShim, hookType, self, hookType)
		path := filepath.Join(hooksDir, hookType)
		if err := os.WriteFile(path, []byte(script), 0o700); err != nil { // #nosec G306 -- hook must be executable
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("wrote %s\n", path)
	}
	fmt.Printf("now run: git config --global init.templateDir %s\n", target)
	return 0
}

// utilYamlToToml converts a legacy YAML config to the table syntax.
func utilYamlToToml(args []string) int {
	src := config.LegacyConfigFileName
	if len(args) > 0 {
		src = args[0]
	}
	dst := config.ConfigFileName
	if len(args) > 1 {
		dst = args[1]
	}

	cfg, err := config.LoadConfig(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(dst); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", dst)
		return 1
	}

	out, err := config.EncodeTOML(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil { // #nosec G306 -- config keeps its conventional mode
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", dst)
	return 0
}

// Help returns the util help text.
func (c *UtilCommand) Help() string {
	var opts UtilOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "{identify|init-template-dir|yaml-to-toml} [ARGS...]"
	base := &BaseCommand{
		Name:        "util",
		Description: "Small maintenance helpers.",
		Examples: []Example{
			{Command: "prek util identify setup.py", Description: "Print a file's identifier tags"},
			{Command: "prek util init-template-dir ~/.git-template", Description: "Write shims for init.templateDir"},
			{Command: "prek util yaml-to-toml", Description: "Convert the legacy config to the table syntax"},
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *UtilCommand) Synopsis() string { return "Maintenance helpers" }

// UtilCommandFactory creates the command.
func UtilCommandFactory() (cli.Command, error) {
	return &UtilCommand{}, nil
}
