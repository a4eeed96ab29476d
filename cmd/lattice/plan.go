package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <graph>",
	Short: "Print the execution order of a graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		return withRuntime(cmd, func(rt *cli.Runtime, ctx *cli.SignalContext) error {
			return rt.Plan(ctx, args[0], jsonMode, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Bool("json", false, "Print the plan as JSON")
}
