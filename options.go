package zxing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"zxing/internal/config"
)

// Options configures a Session. Zero values take the configuration defaults.
type Options struct {
	// Port pins the decoder server port. Zero allocates a free port unless
	// ZXING_PORT is set.
	Port int
	// DecoderPath is the decoder server executable. Empty uses ZXING_DECODER,
	// then zxingd beside the running executable, then $PATH.
	DecoderPath    string
	StartupTimeout time.Duration
	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	ShutdownGrace  time.Duration
	// CallTimeout bounds each remote call. Zero means no bound beyond the
	// caller's context.
	CallTimeout time.Duration
	LockDir     string
}

// OptionsFromConfig maps a loaded configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Port:           cfg.Server.Port,
		DecoderPath:    cfg.DecoderBinary(),
		StartupTimeout: cfg.StartupTimeout(),
		PollInterval:   cfg.PollInterval(),
		ProbeTimeout:   cfg.ProbeTimeout(),
		ShutdownGrace:  cfg.ShutdownGrace(),
		CallTimeout:    cfg.CallTimeout(),
		LockDir:        cfg.Server.LockDir,
	}
}

func (o Options) withDefaults() Options {
	defaults := config.Default()
	if o.DecoderPath == "" {
		defaults.Decoder.Binary = strings.TrimSpace(os.Getenv(config.DecoderEnv))
		o.DecoderPath = defaults.DecoderBinary()
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = defaults.StartupTimeout()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval()
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = defaults.ProbeTimeout()
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = defaults.ShutdownGrace()
	}
	if o.LockDir == "" {
		o.LockDir = defaults.Server.LockDir
	}
	return o
}

// pinnedPort returns the explicitly configured port, falling back to
// ZXING_PORT. Zero means allocate.
func (o Options) pinnedPort() (int, error) {
	if o.Port != 0 {
		return o.Port, nil
	}
	value := strings.TrimSpace(os.Getenv(config.PortEnv))
	if value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s: invalid port %q", config.PortEnv, value)
	}
	return port, nil
}
