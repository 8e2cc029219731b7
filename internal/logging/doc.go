// Package logging builds slog loggers with the console and JSON handlers
// used across overdub, plus shared attribute helpers and field keys.
package logging
