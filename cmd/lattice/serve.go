package main

import (
	"github.com/aretw0/lattice/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves /healthz, /nodes and /metrics until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime, ctx *cli.SignalContext) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				addr = cfg.Serve.Addr
			}
			return rt.Serve(ctx, addr)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides serve.addr)")
}
