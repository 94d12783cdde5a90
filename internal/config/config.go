package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Decoder describes the external decoder server executable.
type Decoder struct {
	// Binary is the decoder server executable. When empty, zxingd next to the
	// running executable is used, falling back to a PATH lookup.
	Binary string `toml:"binary"`
}

// Server contains decoder server rendezvous and supervision settings.
type Server struct {
	// Port pins the decoder port. Zero allocates a free loopback port per session.
	Port                  int    `toml:"port"`
	StartupTimeoutSeconds int    `toml:"startup_timeout_seconds"`
	PollIntervalMillis    int    `toml:"poll_interval_millis"`
	ProbeTimeoutMillis    int    `toml:"probe_timeout_millis"`
	ShutdownGraceSeconds  int    `toml:"shutdown_grace_seconds"`
	LockDir               string `toml:"lock_dir"`
}

// Client contains remote call settings.
type Client struct {
	// CallTimeoutSeconds bounds each remote call. Zero disables the bound.
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for zxing.
type Config struct {
	Decoder Decoder `toml:"decoder"`
	Server  Server  `toml:"server"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/zxing/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return "", false, fmt.Errorf("config file %q: %w", expanded, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("zxing.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// DecoderBinary resolves the decoder server executable. An explicit binary
// wins; otherwise zxingd beside the running executable is preferred when it
// exists, and the bare name is returned for a PATH lookup at spawn time.
func (c *Config) DecoderBinary() string {
	if binary := strings.TrimSpace(c.Decoder.Binary); binary != "" {
		return binary
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), defaultDecoderName)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate
		}
	}
	return defaultDecoderName
}

// StartupTimeout returns the maximum time to wait for a spawned server.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.Server.StartupTimeoutSeconds) * time.Second
}

// PollInterval returns the initial liveness poll interval during startup.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollIntervalMillis) * time.Millisecond
}

// ProbeTimeout returns the dial timeout used by liveness probes.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Server.ProbeTimeoutMillis) * time.Millisecond
}

// ShutdownGrace returns how long an interrupted server may take to exit before it is killed.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSeconds) * time.Second
}

// CallTimeout returns the per-call deadline, or zero when calls are unbounded.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Client.CallTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultLockDir() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "zxing")
	}
	return filepath.Join(os.TempDir(), "zxing")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
