// Package logging assembles the slog loggers used by vhxdl.
//
// It provides console and JSON handlers, per-run log files, component and
// context-derived fields (run id, video id, trigger), warning/error helpers
// that enforce event_type and error_hint fields, and log retention pruning.
package logging
