package services

import "log/slog"

const logModule = "core/services"

// resolveLogger guarantees a non-nil logger for service code paths.
func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
