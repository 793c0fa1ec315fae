package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/theme"
)

// StyledLogger wraps slog.Logger with theme-aware helpers for
// target/route-scoped messages, the way the teacher's StyledLogger
// wraps endpoint-scoped messages.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger wraps an existing *slog.Logger with a theme.
func NewStyledLogger(logger *slog.Logger, t *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: t}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// WithTarget tags every subsequent message with the target address,
// used across the connector/pool/health logging call sites.
func (sl *StyledLogger) WithTarget(target domain.Target) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With("target", string(target)), theme: sl.theme}
}

// InfoWithTarget logs at info level with a styled target address
// prefix, mirroring the teacher's InfoWithEndpoint.
func (sl *StyledLogger) InfoWithTarget(msg string, target domain.Target, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgCyan).Sprint(string(target)))
	sl.logger.Info(styled, args...)
}

// WarnWithTarget logs at warn level with a styled target address prefix.
func (sl *StyledLogger) WarnWithTarget(msg string, target domain.Target, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgYellow).Sprint(string(target)))
	sl.logger.Warn(styled, args...)
}

// ErrorWithTarget logs at error level with a styled target address prefix.
func (sl *StyledLogger) ErrorWithTarget(msg string, target domain.Target, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(pterm.FgRed).Sprint(string(target)))
	sl.logger.Error(styled, args...)
}
