package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"zxing/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique lock directory per test.
// Logging is turned down to errors so test output stays quiet.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.LockDir = filepath.Join(base, "locks")
	cfgVal.Server.PollIntervalMillis = 20
	cfgVal.Server.StartupTimeoutSeconds = 20
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPort pins the decoder server port.
func WithPort(port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Port = port
	}
}

// WithDecoderBinary sets the decoder server executable.
func WithDecoderBinary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decoder.Binary = path
	}
}

// WithMissingDecoder points the decoder binary at a path that does not exist,
// so any attempt to spawn fails.
func WithMissingDecoder() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decoder.Binary = filepath.Join(b.baseDir, "missing-zxingd")
	}
}

// WriteConfig encodes cfg as TOML at path.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config %s: %v", path, err)
	}
}
