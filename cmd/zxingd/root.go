package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zxing/internal/config"
	"zxing/internal/decoder"
	"zxing/internal/endpoint"
	"zxing/internal/ipc"
	"zxing/internal/logging"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configFlag string
	var tryHarder bool

	cmd := &cobra.Command{
		Use:           "zxingd PORT",
		Short:         "Barcode decoder server",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := parseEndpoint(args[0])
			if err != nil {
				return err
			}
			cfg, _, _, err := config.Load(strings.TrimSpace(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ep, decoder.New(decoder.Options{TryHarder: tryHarder}), logger)
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&tryHarder, "try-harder", false, "Spend more time searching each image")
	return cmd
}

func parseEndpoint(arg string) (endpoint.Endpoint, error) {
	port, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("invalid port %q", arg)
	}
	return endpoint.New(port)
}

// serve runs the decoder RPC service on ep until ctx is done.
func serve(ctx context.Context, ep endpoint.Endpoint, backend ipc.Backend, logger *slog.Logger) error {
	srv, err := ipc.NewServer(ctx, ep.String(), backend, logger, ipc.WithVersion(version))
	if err != nil {
		return err
	}
	defer srv.Close()
	srv.Serve()

	logger.Info("zxingd listening",
		logging.String(logging.FieldEventType, "decoder_server_listening"),
		logging.Int(logging.FieldPort, ep.Port),
		logging.Int(logging.FieldPID, os.Getpid()))
	<-ctx.Done()
	logger.Info("zxingd shutting down", logging.Int(logging.FieldPort, ep.Port))
	return nil
}
