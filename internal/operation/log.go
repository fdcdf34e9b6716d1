package operation

import (
	"log/slog"
	"strings"
)

// logAtLevel maps the host ABI's six log levels (trace, debug, info,
// warn, error, critical) onto slog's four, collapsing trace into debug
// and critical into error — slog has no nearer equivalent for either.
// Used by Stack.Values and Control.Log.
func logAtLevel(logger *slog.Logger, level, msg string, args ...any) {
	switch strings.ToLower(level) {
	case "trace", "debug":
		logger.Debug(msg, args...)
	case "warn", "warning":
		logger.Warn(msg, args...)
	case "error", "critical":
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}
