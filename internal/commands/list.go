package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
)

// ListCommand prints every hook in the workspace, per project, in
// execution order.
type ListCommand struct{}

// ListOptions holds the list command's flags.
type ListOptions struct {
	CommonOptions
	HookStage string `long:"hook-stage" description:"Only list hooks eligible at this stage"`
}

// Run executes list.
func (c *ListCommand) Run(args []string) int {
	var opts ListOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	rc, err := openRuntime(&opts.CommonOptions, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tHOOK\tLANGUAGE\tSTAGES")
	for _, project := range rc.Ws.Projects {
		for _, repo := range project.Config.Repos {
			for _, h := range repo.Hooks {
				if opts.HookStage != "" && !h.RunsAtStage(opts.HookStage, project.Config.DefaultStages) {
					continue
				}
				lang := h.Language
				if lang == "" {
					lang = "(manifest)"
				}
				stages := "(all)"
				if s := h.EffectiveStages(project.Config.DefaultStages); len(s) > 0 {
					stages = fmt.Sprint(s)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", project.RelPath, h.ID, lang, stages)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

// Help returns the list help text.
func (c *ListCommand) Help() string {
	var opts ListOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "list",
		Description: "List hooks per project in execution order.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *ListCommand) Synopsis() string { return "List configured hooks" }

// ListCommandFactory creates the command.
func ListCommandFactory() (cli.Command, error) {
	return &ListCommand{}, nil
}
