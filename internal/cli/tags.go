package cli

import (
	"fmt"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelsmith/pkg/tags"
)

// tagsCommand creates the tags command.
func (c *CLI) tagsCommand() *cobra.Command {
	var (
		pythonVersion string
		limit         int
		refresh       bool
	)

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the wheel tags the host accepts, most preferred first",
		Example: `  wheelsmith tags --python-version 3.11
  wheelsmith tags --python-version 3.8 --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			major, minor, err := parsePythonVersion(pythonVersion)
			if err != nil {
				return err
			}
			ct, err := c.compatibleTags(cmd.Context(), major, minor, refresh)
			if err != nil {
				return err
			}

			printTarget(major, minor, ct.Platform)
			list := ct.Tags
			if limit > 0 && limit < len(list) {
				list = list[:limit]
			}
			for _, tag := range list {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python-version", "3.12", "target python version as major.minor")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many tags")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "detect the platform again instead of using the cache")

	return cmd
}

// selectCommand creates the select command.
func (c *CLI) selectCommand() *cobra.Command {
	var (
		pythonVersion string
		refresh       bool
	)

	cmd := &cobra.Command{
		Use:   "select <wheel>...",
		Short: "Print the most preferred wheel the host can install",
		Long: `Rank the given wheel files by their tags against the host and print the
best one. Fails when none of them is compatible.`,
		Example: `  wheelsmith select --python-version 3.11 dist/*.whl`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			major, minor, err := parsePythonVersion(pythonVersion)
			if err != nil {
				return err
			}
			ct, err := c.compatibleTags(cmd.Context(), major, minor, refresh)
			if err != nil {
				return err
			}

			wheels := make([]*tags.WheelFilename, 0, len(args))
			paths := make(map[*tags.WheelFilename]string, len(args))
			for _, arg := range args {
				wf, err := tags.ParseWheelFilename(arg)
				if err != nil {
					printSkippedWheel(filepath.Base(arg), err)
					continue
				}
				wheels = append(wheels, wf)
				paths[wf] = arg
			}

			skipped := lo.Reject(wheels, func(w *tags.WheelFilename, _ int) bool { return w.IsCompatible(ct) })
			for _, w := range skipped {
				c.Logger.Debug("incompatible wheel", "wheel", w.String())
			}

			best, tag, err := tags.Best(wheels, ct)
			if err != nil {
				return err
			}
			c.Logger.Debug("selected wheel", "wheel", best.String(), "tag", tag, "candidates", len(wheels))
			fmt.Fprintln(cmd.OutOrStdout(), paths[best])
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python-version", "3.12", "target python version as major.minor")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "detect the platform again instead of using the cache")

	return cmd
}
