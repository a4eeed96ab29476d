package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <graph>",
	Short: "Export the graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the graph, grouped by execution level.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withRun, _ := cmd.Flags().GetBool("run")
		return withRuntime(cmd, func(rt *cli.Runtime, ctx *cli.SignalContext) error {
			return rt.Graph(ctx, args[0], withRun, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("run", false, "Execute the graph and colour nodes by their final state")
}
