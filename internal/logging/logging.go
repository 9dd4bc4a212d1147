// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "clamm-options", "logs", "engine.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithOption adds an option id to the logger context.
func WithOption(logger zerolog.Logger, optionID uint64) zerolog.Logger {
	return logger.With().Uint64("option_id", optionID).Logger()
}

// WithMarket adds a market identifier to the logger context.
func WithMarket(logger zerolog.Logger, market string) zerolog.Logger {
	return logger.With().Str("market", market).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogMint logs a successful mint.
func LogMint(logger zerolog.Logger, optionID uint64, isCall bool, legs int, premium, fee, notional string) {
	logger.Info().
		Str("event", "mint").
		Uint64("option_id", optionID).
		Bool("is_call", isCall).
		Int("legs", legs).
		Str("premium", premium).
		Str("fee", fee).
		Str("notional", notional).
		Msg("Option minted")
}

// LogExercise logs a successful exercise.
func LogExercise(logger zerolog.Logger, optionID uint64, caller, profit, collateral string) {
	logger.Info().
		Str("event", "exercise").
		Uint64("option_id", optionID).
		Str("caller", caller).
		Str("profit", profit).
		Str("collateral", collateral).
		Msg("Option exercised")
}

// LogSettle logs a successful settlement.
func LogSettle(logger zerolog.Logger, optionID uint64, settler, delta string) {
	logger.Info().
		Str("event", "settle").
		Uint64("option_id", optionID).
		Str("settler", settler).
		Str("delta", delta).
		Msg("Option settled")
}

// LogSplit logs a successful split.
func LogSplit(logger zerolog.Logger, optionID, newOptionID uint64, to string) {
	logger.Info().
		Str("event", "split").
		Uint64("option_id", optionID).
		Uint64("new_option_id", newOptionID).
		Str("to", to).
		Msg("Option split")
}

// LogAdmin logs an admin mutation.
func LogAdmin(logger zerolog.Logger, field, value string) {
	logger.Info().
		Str("event", "admin").
		Str("field", field).
		Str("value", value).
		Msg("Admin update")
}
