package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and the sink of the process logger.
type Options struct {
	Level string
	// File enables a rotated log file instead of the console writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. An unknown level falls back to info.
func New(opts Options) zerolog.Logger {
	return newWithConsole(opts, os.Stderr)
}

func newWithConsole(opts Options, console io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(writer(opts, console)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func writer(opts Options, console io.Writer) io.Writer {
	if strings.TrimSpace(opts.File) == "" {
		return zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 5),
		MaxAge:     orDefault(opts.MaxAgeDays, 28),
	}
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
