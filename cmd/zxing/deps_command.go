package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zxing/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that the decoder server binary is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := deps.CheckDecoder(cfg.DecoderBinary())

			detail := status.Detail
			if detail == "" {
				detail = status.Description
			}
			rows := [][]string{{status.Name, status.Command, yesNo(status.Available), detail}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Dependency", "Command", "Available", "Detail"}, rows))
			if !status.Available {
				return fmt.Errorf("decoder server unavailable: %s", status.Detail)
			}
			return nil
		},
	}
}
