package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogsampling "github.com/samber/slog-sampling"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
)

// Config holds the logger configuration.
type Config struct {
	Level                 LogLevel
	Output                io.Writer
	DisableSampling       bool
	SamplingRate          float64
	ThresholdSamplingTick time.Duration
	ThresholdSamplingMax  uint64
	ThresholdSamplingRate float64
	EnableUniformSampling bool
}

// DefaultConfig returns a default logger configuration.
// Logs go to stderr so that the interactive shell owns stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:                 LevelWarning,
		Output:                os.Stderr,
		DisableSampling:       false,
		SamplingRate:          0.1,
		ThresholdSamplingTick: 5 * time.Second,
		ThresholdSamplingMax:  10,   // Allow first 10 identical messages.
		ThresholdSamplingRate: 0.05, // Then only 5% of subsequent messages.
		EnableUniformSampling: false,
	}
}

// NewLogger creates a new configured logger with sampling.
func NewLogger(config *Config) *slog.Logger {
	if config == nil {
		config = DefaultConfig()
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	baseHandler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(string(config.Level)),
	})

	if config.DisableSampling {
		return slog.New(baseHandler)
	}

	if config.EnableUniformSampling {
		uniformOption := slogsampling.UniformSamplingOption{
			Rate: config.SamplingRate,
		}
		return slog.New(
			slogmulti.
				Pipe(uniformOption.NewMiddleware()).
				Handler(baseHandler),
		)
	}

	// Threshold sampling: first N identical messages per tick, then apply rate.
	thresholdOption := slogsampling.ThresholdSamplingOption{
		Tick:      config.ThresholdSamplingTick,
		Threshold: config.ThresholdSamplingMax,
		Rate:      config.ThresholdSamplingRate,
		Matcher:   slogsampling.MatchByLevelAndMessage(),
	}

	return slog.New(
		slogmulti.
			Pipe(thresholdOption.NewMiddleware()).
			Handler(baseHandler),
	)
}

// ParseLevel converts a level name to slog.Level. Unknown names map to WARNING.
func ParseLevel(level string) slog.Level {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(level))) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarning, "WARN":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// WithComponent adds a component field to the logger for better categorization.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// LogPlaybackEvent logs playback-related events with consistent fields.
func LogPlaybackEvent(logger *slog.Logger, level slog.Level, msg string, policy string, trackPath string, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("policy", policy),
		slog.String("track", trackPath),
		slog.String("event_type", "playback"),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(context.Background(), level, msg, allAttrs...)
}

// LogLibraryEvent logs library mutations with consistent fields.
func LogLibraryEvent(logger *slog.Logger, level slog.Level, msg string, operation string, size int, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Int("library_size", size),
		slog.String("event_type", "library"),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(context.Background(), level, msg, allAttrs...)
}

// LogConfigEvent logs configuration-related events.
func LogConfigEvent(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("event_type", "config"),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(context.Background(), level, msg, allAttrs...)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
