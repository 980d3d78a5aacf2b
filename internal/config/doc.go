// Package config loads, normalizes, and validates vhxdl configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours VHX_* environment fallbacks for credentials. Command
// flags are layered on top by the CLI, which then calls ValidateRun.
package config
