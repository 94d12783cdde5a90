package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zxing"
	"zxing/internal/ipc"
)

type decodeMode struct {
	all       bool
	qr        bool
	strict    bool
	retryOnce bool
}

type decodeResult struct {
	path  string
	texts []string
	err   error
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var mode decodeMode

	cmd := &cobra.Command{
		Use:   "decode FILE...",
		Short: "Decode barcodes from image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := ctx.newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			results, err := decodeFiles(runCtx, session, args, mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isTerminal(out) {
				writeResultTable(out, results)
			} else {
				writeResultLines(out, cmd.ErrOrStderr(), results)
			}

			failed := 0
			for _, res := range results {
				if res.err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed to decode", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&mode.all, "all", false, "Report every code found in each image")
	cmd.Flags().BoolVar(&mode.qr, "qr", false, "Decode QR codes only")
	cmd.Flags().BoolVar(&mode.strict, "strict", false, "Treat images without a readable code as failures")
	cmd.Flags().BoolVar(&mode.retryOnce, "retry-once", false, "Restart the decoder server once if it has gone away")
	cmd.MarkFlagsMutuallyExclusive("all", "qr")
	return cmd
}

// decodeFiles decodes each path in order. Per-image faults are collected in
// the results; transport faults abort the run.
func decodeFiles(ctx context.Context, session *zxing.Session, paths []string, mode decodeMode) ([]decodeResult, error) {
	var opts []zxing.CallOption
	if mode.retryOnce {
		opts = append(opts, zxing.RetryOnce())
	}

	results := make([]decodeResult, 0, len(paths))
	for _, path := range paths {
		texts, err := decodeOne(ctx, session, path, mode, opts)
		if err != nil && !zxing.IsUndecodable(err) && !ipc.IsRemoteError(err) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		results = append(results, decodeResult{path: path, texts: texts, err: err})
	}
	return results, nil
}

func decodeOne(ctx context.Context, session *zxing.Session, path string, mode decodeMode, opts []zxing.CallOption) ([]string, error) {
	switch {
	case mode.all && mode.strict:
		return session.DecodeAllStrict(ctx, path, opts...)
	case mode.all:
		return session.DecodeAll(ctx, path, opts...)
	case mode.qr:
		text, found, err := session.QRCodeDecode(ctx, path, opts...)
		// Sessions have no strict QR variant, so strictness is applied here.
		if err == nil && !found && mode.strict {
			err = &zxing.UndecodableError{Path: path}
		}
		return single(text, found), err
	case mode.strict:
		text, err := session.DecodeStrict(ctx, path, opts...)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		text, found, err := session.Decode(ctx, path, opts...)
		return single(text, found), err
	}
}

func single(text string, found bool) []string {
	if !found {
		return nil
	}
	return []string{text}
}

func errorMessage(err error) string {
	if msg := ipc.RemoteMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func writeResultTable(out io.Writer, results []decodeResult) {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		switch {
		case res.err != nil:
			rows = append(rows, []string{res.path, "error: " + errorMessage(res.err)})
		case len(res.texts) == 0:
			rows = append(rows, []string{res.path, "-"})
		default:
			for _, text := range res.texts {
				rows = append(rows, []string{res.path, text})
			}
		}
	}
	fmt.Fprintln(out, renderTable([]string{"File", "Code"}, rows))
}

// writeResultLines prints one path<TAB>text line per decoded value. Absent
// results and errors go to errOut so stdout stays machine readable.
func writeResultLines(out, errOut io.Writer, results []decodeResult) {
	for _, res := range results {
		switch {
		case res.err != nil:
			fmt.Fprintf(errOut, "%s: %s\n", res.path, errorMessage(res.err))
		case len(res.texts) == 0:
			fmt.Fprintf(errOut, "%s: no code found\n", res.path)
		default:
			for _, text := range res.texts {
				fmt.Fprintf(out, "%s\t%s\n", res.path, strings.ReplaceAll(text, "\n", `\n`))
			}
		}
	}
}
