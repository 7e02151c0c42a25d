// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.

	// File, when set, receives a JSON copy of every log line, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	log.Logger = New(cfg, os.Stdout)
}

// New builds a logger writing to out, plus the rotating file if configured.
// Init uses it for the global logger; tests pass a buffer.
func New(cfg Config, out io.Writer) zerolog.Logger {
	// Set time format
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// Parse log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	output := out
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	if cfg.File != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithTurn returns a logger with recognition turn context.
func WithTurn(turnId string, epoch uint64) zerolog.Logger {
	return log.With().
		Str("component", "session").
		Str("turnId", turnId).
		Uint64("epoch", epoch).
		Logger()
}

// WithClient returns a logger with bridge client context.
func WithClient(clientId, remoteAddr string) zerolog.Logger {
	return log.With().
		Str("component", "bridge").
		Str("clientId", clientId).
		Str("remoteAddr", remoteAddr).
		Logger()
}

// WithStream returns a logger with capture stream context.
func WithStream(streamId, provider string) zerolog.Logger {
	return log.With().
		Str("component", "capture").
		Str("streamId", streamId).
		Str("captureProvider", provider).
		Logger()
}
