package logger

import (
	"log/slog"
	"os"
)

// FatalWithLogger logs msg at error level and exits the process with
// status 1, matching the teacher's boot-time fatal-error convention.
func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
