package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph>",
	Short: "Check a graph for consistency",
	Long:  `Reports cycles, unregistered node types and edges that reference missing nodes, without executing anything.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime, ctx *cli.SignalContext) error {
			return rt.Validate(ctx, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
