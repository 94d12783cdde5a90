package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (or 0 to allocate), got %d", c.Server.Port)
	}
	if c.Server.StartupTimeoutSeconds < 0 {
		return errors.New("server.startup_timeout_seconds must be positive")
	}
	if c.Server.PollIntervalMillis < 0 {
		return errors.New("server.poll_interval_millis must be positive")
	}
	if c.Server.ProbeTimeoutMillis < 0 {
		return errors.New("server.probe_timeout_millis must be positive")
	}
	if c.Server.ShutdownGraceSeconds < 0 {
		return errors.New("server.shutdown_grace_seconds must be positive")
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Client.CallTimeoutSeconds < 0 {
		return errors.New("client.call_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
