package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zxing/internal/config"
	"zxing/internal/endpoint"
	"zxing/internal/ipc"
)

func newServerCommand(ctx *commandContext) *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Inspect the decoder server",
	}
	serverCmd.AddCommand(newServerStatusCommand(ctx))
	return serverCmd
}

func newServerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a decoder server answers on the configured port",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decoder: %s\n", cfg.DecoderBinary())

			if cfg.Server.Port == 0 {
				fmt.Fprintf(out, "Port: not pinned (set server.port or %s to share one server)\n", config.PortEnv)
				return nil
			}
			ep, err := endpoint.New(cfg.Server.Port)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Endpoint: %s\n", ep)

			running, err := endpoint.Responsive(ep, cfg.ProbeTimeout())
			if err != nil {
				return fmt.Errorf("probe %s: %w", ep, err)
			}
			fmt.Fprintf(out, "Running: %s\n", yesNo(running))
			if !running {
				return nil
			}

			client, err := ipc.Dial(cmd.Context(), ep.String())
			if err != nil {
				return fmt.Errorf("connect to decoder server: %w", err)
			}
			defer client.Close()
			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("query decoder server: %w", err)
			}

			rows := [][]string{
				{"PID", fmt.Sprintf("%d", status.PID)},
				{"Version", status.Version},
				{"Uptime", time.Since(status.StartedAt).Round(time.Second).String()},
				{"Decodes", fmt.Sprintf("%d", status.Decodes)},
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
