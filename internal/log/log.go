// Package log provides the global zerolog logger used across the service.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &l
}

// Logger returns the zerolog Logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// SetOutput replaces the writer of the global logger.
func SetOutput(w io.Writer) {
	l := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &l
}

// SetLevel sets the minimum global log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || raw == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

// Info starts a new message with info level.
func Info() *zerolog.Event {
	return log.Logger.Info()
}

// Warn starts a new message with warn level.
func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

// Error starts a new message with error level.
func Error() *zerolog.Event {
	return log.Logger.Error()
}
