package commands

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"

	"github.com/shaneholloman/prek/pkg/config"
)

// ValidateConfigCommand checks config files without running anything.
type ValidateConfigCommand struct{}

// ValidateOptions is shared by both validate commands; positionals are the
// files to check.
type ValidateOptions struct {
	CommonOptions
}

// Run executes validate-config.
func (c *ValidateConfigCommand) Run(args []string) int {
	var opts ValidateOptions
	files, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(files) == 0 {
		if opts.Config != "" {
			files = []string{opts.Config}
		} else if path := config.FindConfigFile("."); path != "" {
			files = []string{path}
		} else {
			fmt.Fprintln(os.Stderr, "Error: no configuration found")
			return 1
		}
	}

	exit := 0
	for _, f := range files {
		if _, err := config.LoadConfig(f); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			exit = 1
		}
	}
	return exit
}

// Help returns the validate-config help text.
func (c *ValidateConfigCommand) Help() string {
	var opts ValidateOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [FILE...]"
	base := &BaseCommand{
		Name:        "validate-config",
		Description: "Validate project configuration files.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *ValidateConfigCommand) Synopsis() string { return "Validate configuration files" }

// ValidateConfigCommandFactory creates the command.
func ValidateConfigCommandFactory() (cli.Command, error) {
	return &ValidateConfigCommand{}, nil
}

// ValidateManifestCommand checks .pre-commit-hooks.yaml manifests.
type ValidateManifestCommand struct{}

// Run executes validate-manifest.
func (c *ValidateManifestCommand) Run(args []string) int {
	var opts ValidateOptions
	files, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(files) == 0 {
		files = []string{config.ManifestFileName}
	}

	exit := 0
	for _, f := range files {
		if err := validateManifestFile(f); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			exit = 1
		}
	}
	return exit
}

func validateManifestFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied manifest path
	if err != nil {
		return err
	}
	var hooks []config.Hook
	if err := yaml.Unmarshal(data, &hooks); err != nil {
		return err
	}
	return config.ValidateManifest(hooks)
}

// Help returns the validate-manifest help text.
func (c *ValidateManifestCommand) Help() string {
	var opts ValidateOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [FILE...]"
	base := &BaseCommand{
		Name:        "validate-manifest",
		Description: "Validate hook manifest files.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *ValidateManifestCommand) Synopsis() string { return "Validate hook manifest files" }

// ValidateManifestCommandFactory creates the command.
func ValidateManifestCommandFactory() (cli.Command, error) {
	return &ValidateManifestCommand{}, nil
}

// SampleConfigCommand prints a starter configuration.
type SampleConfigCommand struct{}

const sampleConfig = `# See https://github.com/shaneholloman/prek for documentation
repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.6.0
    hooks:
      - id: trailing-whitespace
      - id: end-of-file-fixer
      - id: check-yaml
      - id: check-added-large-files
`

// Run executes sample-config.
func (c *SampleConfigCommand) Run(args []string) int {
	var opts ValidateOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	fmt.Print(sampleConfig)
	return 0
}

// Help returns the sample-config help text.
func (c *SampleConfigCommand) Help() string {
	var opts ValidateOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "sample-config",
		Description: "Print a sample configuration to stdout.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *SampleConfigCommand) Synopsis() string { return "Print a sample configuration" }

// SampleConfigCommandFactory creates the command.
func SampleConfigCommandFactory() (cli.Command, error) {
	return &SampleConfigCommand{}, nil
}
