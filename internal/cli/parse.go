package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelsmith/pkg/requirements"
)

// parseOpts holds the command-line flags for the parse command.
type parseOpts struct {
	json     bool
	maxDepth int
}

// parseCommand creates the parse command.
func (c *CLI) parseCommand() *cobra.Command {
	var opts parseOpts

	cmd := &cobra.Command{
		Use:   "parse <requirements.txt>",
		Short: "Parse a requirements file and everything it includes",
		Long: `Parse a requirements.txt file, following -r and -c includes relative to
the including file, and print the resulting requirements and constraints.`,
		Example: `  wheelsmith parse requirements.txt
  wheelsmith parse --json requirements-dev.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the parsed file as JSON")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum include nesting (default from config)")

	return cmd
}

func (c *CLI) runParse(cmd *cobra.Command, path string, opts parseOpts) error {
	maxDepth := opts.maxDepth
	if maxDepth <= 0 {
		maxDepth = c.Config.Requirements.MaxIncludeDepth
	}

	prog := newProgress(c.Logger)
	res, err := requirements.ParseWithOptions(cmd.Context(), path, requirements.Options{
		MaxDepth: maxDepth,
		Logger:   c.Logger,
	})
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Parsed %d requirements and %d constraints", len(res.Requirements), len(res.Constraints)))

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	writeRequirements(cmd.OutOrStdout(), res)
	return nil
}

// writeRequirements prints one requirement per line in requirements.txt form.
func writeRequirements(w io.Writer, res *requirements.RequirementsTxt) {
	for _, entry := range res.Requirements {
		var line strings.Builder
		if entry.Editable {
			line.WriteString("-e ")
		}
		line.WriteString(entry.Requirement.String())
		for _, h := range entry.Hashes {
			line.WriteString(" --hash=" + h)
		}
		fmt.Fprintln(w, line.String())
	}
	for _, constraint := range res.Constraints {
		fmt.Fprintln(w, "# constraint: "+constraint.String())
	}
}
