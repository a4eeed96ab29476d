package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the registered node types",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		return withRuntime(cmd, func(rt *cli.Runtime, _ *cli.SignalContext) error {
			return rt.Nodes(jsonMode, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.Flags().Bool("json", false, "Print full manifests as JSON")
}
