package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PortEnv pins the decoder server port when set.
const PortEnv = "ZXING_PORT"

// DecoderEnv overrides the decoder server executable when set.
const DecoderEnv = "ZXING_DECODER"

func (c *Config) normalize() error {
	if err := c.normalizeDecoder(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeDecoder() error {
	if value, ok := os.LookupEnv(DecoderEnv); ok && strings.TrimSpace(value) != "" {
		c.Decoder.Binary = value
	}
	c.Decoder.Binary = strings.TrimSpace(c.Decoder.Binary)
	if strings.ContainsRune(c.Decoder.Binary, os.PathSeparator) || strings.HasPrefix(c.Decoder.Binary, "~") {
		expanded, err := expandPath(c.Decoder.Binary)
		if err != nil {
			return fmt.Errorf("decoder.binary: %w", err)
		}
		c.Decoder.Binary = expanded
	}
	return nil
}

func (c *Config) normalizeServer() error {
	if value, ok := os.LookupEnv(PortEnv); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", PortEnv, value)
		}
		c.Server.Port = port
	}
	if c.Server.StartupTimeoutSeconds == 0 {
		c.Server.StartupTimeoutSeconds = defaultStartupTimeoutSeconds
	}
	if c.Server.PollIntervalMillis == 0 {
		c.Server.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Server.ProbeTimeoutMillis == 0 {
		c.Server.ProbeTimeoutMillis = defaultProbeTimeoutMillis
	}
	if c.Server.ShutdownGraceSeconds == 0 {
		c.Server.ShutdownGraceSeconds = defaultShutdownGraceSeconds
	}
	if strings.TrimSpace(c.Server.LockDir) == "" {
		c.Server.LockDir = defaultLockDir()
	}
	var err error
	if c.Server.LockDir, err = expandPath(c.Server.LockDir); err != nil {
		return fmt.Errorf("server.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
