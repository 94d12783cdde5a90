// Package config loads, normalizes, and validates zxing configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// ZXING_PORT and ZXING_DECODER. The Config type centralizes every knob the
// decoding session, the supervisor, and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
