package main

import (
	"fmt"

	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter project",
	Long:  `Writes lattice.yaml and graphs/hello.yaml into dir (default: the current directory).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		out := cmd.OutOrStdout()
		tui.PrintBanner(out)
		written, err := cli.Scaffold(dir, force)
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Fprintln(out, "Nothing to do: files already exist (use --force to overwrite).")
			return nil
		}
		for _, path := range written {
			fmt.Fprintln(out, tui.StatusLine(out, true, "wrote "+path))
		}
		fmt.Fprintln(out, "\nTry: lattice run hello.yaml")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite existing files")
}
