package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <graph>",
	Short: "Execute a graph and print a report",
	Long: `Loads the graph file, validates it and executes every node in dependency
order. The report is rendered for the terminal, or printed as plain Markdown
when stdout is not a TTY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		stats, _ := cmd.Flags().GetBool("stats")
		return withRuntime(cmd, func(rt *cli.Runtime, ctx *cli.SignalContext) error {
			_, err := rt.RunGraph(ctx, args[0], cli.RunOptions{JSON: jsonMode, Stats: stats}, cmd.OutOrStdout())
			if sig := ctx.Signal(); sig != nil {
				rt.Logger.Info("run interrupted", "signal", sig.String())
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Print the run result as JSON")
	runCmd.Flags().Bool("stats", false, "Append execution statistics to the report")
	runCmd.Flags().IntP("parallelism", "p", 0, "Run up to N nodes of the same level at once")
	runCmd.Flags().Duration("timeout", 0, "Per-node timeout (0 uses the built-in default)")
}
