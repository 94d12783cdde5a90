package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zxing/internal/config"
	"zxing/internal/ipc"
	"zxing/internal/testsupport"
)

// stubBackend decodes every path except blank* (no code) and missing*
// (unreadable file).
type stubBackend struct{}

func (stubBackend) Decode(_ context.Context, path string) (string, bool, error) {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "missing"):
		return "", false, errors.New("open " + path + ": no such file or directory")
	case strings.HasPrefix(base, "blank"):
		return "", false, nil
	}
	return "code-" + base, true, nil
}

func (b stubBackend) DecodeAll(ctx context.Context, path string) ([]string, bool, error) {
	text, found, err := b.Decode(ctx, path)
	if err != nil || !found {
		return nil, found, err
	}
	return []string{text, text + "-2"}, true, nil
}

func (b stubBackend) DecodeQRCode(ctx context.Context, path string) (string, bool, error) {
	text, found, err := b.Decode(ctx, path)
	if found {
		text = "qr-" + text
	}
	return text, found, err
}

type cliTestEnv struct {
	port       int
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv(config.PortEnv, "")
	t.Setenv(config.DecoderEnv, "")

	ep := testsupport.StartDecoderServer(t, stubBackend{}, ipc.WithVersion("test"))

	configPath := filepath.Join(base, "config.toml")
	cfg := testsupport.NewConfig(t, testsupport.WithPort(ep.Port), testsupport.WithMissingDecoder())
	testsupport.WriteConfig(t, configPath, cfg)

	return &cliTestEnv{port: ep.Port, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
