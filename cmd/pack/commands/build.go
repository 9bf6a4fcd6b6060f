package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pack/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the entries of pack.yaml and write the assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Build(cmd.Context(), buildOptions(cmd))
		},
	}
	addBuildFlags(cmd)
	return cmd
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("no-cache", "n", false, "Disable the module caches for this run")
	cmd.Flags().Bool("profile", false, "Report per-module build timings")
	cmd.Flags().BoolP("verbose", "v", false, "Report chunks, reasons, phase timings and cache counters")
	cmd.Flags().Bool("json", false, "Print the stats as JSON")
	cmd.Flags().String("log-format", "auto", "Log format: auto, pretty, or json")
	cmd.Flags().StringP("dir", "C", "", "Directory to search pack.yaml from")
}

func buildOptions(cmd *cobra.Command) app.BuildOptions {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	profile, _ := cmd.Flags().GetBool("profile")
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("json")
	logFormat, _ := cmd.Flags().GetString("log-format")
	dir, _ := cmd.Flags().GetString("dir")

	return app.BuildOptions{
		Dir:       dir,
		NoCache:   noCache,
		Profile:   profile,
		Verbose:   verbose,
		JSON:      asJSON,
		LogFormat: logFormat,
	}
}
