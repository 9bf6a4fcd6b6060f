package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pack/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the persistent cache and asset manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			dir, _ := cmd.Flags().GetString("dir")
			return c.app.Clean(cmd.Context(), app.CleanOptions{Dir: dir, Output: all})
		},
	}

	cmd.Flags().BoolP("all", "a", false, "Also remove the output directory")
	cmd.Flags().StringP("dir", "C", "", "Directory to search pack.yaml from")

	return cmd
}
