package config

const (
	defaultDecoderName           = "zxingd"
	defaultStartupTimeoutSeconds = 30
	defaultPollIntervalMillis    = 500
	defaultProbeTimeoutMillis    = 1000
	defaultShutdownGraceSeconds  = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			StartupTimeoutSeconds: defaultStartupTimeoutSeconds,
			PollIntervalMillis:    defaultPollIntervalMillis,
			ProbeTimeoutMillis:    defaultProbeTimeoutMillis,
			ShutdownGraceSeconds:  defaultShutdownGraceSeconds,
			LockDir:               defaultLockDir(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
