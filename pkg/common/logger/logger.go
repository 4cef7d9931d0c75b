package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the logger configuration
type Config struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // "json" or "console"
	TimeFormat string `json:"time_format" yaml:"time_format"`
	Output     string `json:"output" yaml:"output"` // "stdout", "stderr", "discard", or file path
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", target, err)
	}
	return file, nil
}

// Init initializes the global logger with the provided configuration
func Init(config *Config) error {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	output, err := openOutput(config.Output)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(level)
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	switch config.Format {
	case "console":
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: config.TimeFormat}
	case "json", "":
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}

	ctx := zerolog.New(output).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

// SetOutput swaps the global logger for one writing JSON to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &log.Logger
}

// WithComponent returns a logger with a component field
func WithComponent(component string) *zerolog.Logger {
	logger := log.Logger.With().Str("component", component).Logger()
	return &logger
}
