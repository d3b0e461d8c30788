package commands

import (
	"fmt"

	"github.com/mitchellh/cli"
)

// HelpCommand prints the top-level usage; the CLI framework handles
// per-command help through each command's Help method.
type HelpCommand struct {
	// HelpText is the same output `prek` prints with no arguments.
	HelpText string
}

// Run executes help.
func (c *HelpCommand) Run(_ []string) int {
	fmt.Print(c.HelpText)
	return 0
}

// Help returns the help text.
func (c *HelpCommand) Help() string { return c.HelpText }

// Synopsis returns the one-line description.
func (c *HelpCommand) Synopsis() string { return "Show usage" }

// HelpCommandFactory creates the command with the rendered top-level help.
func HelpCommandFactory(helpText string) cli.CommandFactory {
	return func() (cli.Command, error) {
		return &HelpCommand{HelpText: helpText}, nil
	}
}
