package sentry_helper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryHelper provides safe and optional Sentry operations.
// A disabled helper turns every call into a no-op, so callers never need nil checks.
type SentryHelper struct {
	enabled bool
	logger  *slog.Logger
}

// NewSentryHelper creates a new SentryHelper instance.
func NewSentryHelper(enabled bool, logger *slog.Logger) *SentryHelper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentryHelper{
		enabled: enabled,
		logger:  logger,
	}
}

// Init initializes the global Sentry client when dsn is set and returns a
// helper bound to it. An empty dsn yields a disabled helper.
func Init(dsn, environment, release string, logger *slog.Logger) (*SentryHelper, error) {
	if dsn == "" {
		return NewSentryHelper(false, logger), nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return NewSentryHelper(false, logger), fmt.Errorf("sentry init: %w", err)
	}
	return NewSentryHelper(true, logger), nil
}

// IsEnabled returns whether Sentry is enabled.
func (h *SentryHelper) IsEnabled() bool {
	return h.enabled
}

// CaptureExceptionWithContext captures an exception with tags and extra data.
func (h *SentryHelper) CaptureExceptionWithContext(err error, tags map[string]string, extra map[string]interface{}) {
	if !h.enabled || err == nil {
		return
	}

	// Clone hub to avoid data races in goroutines.
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// CaptureMessageWithContext captures a message with tags and extra data.
func (h *SentryHelper) CaptureMessageWithContext(msg string, tags map[string]string, extra map[string]interface{}) {
	if !h.enabled || msg == "" {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		hub.CaptureMessage(msg)
	})
}

// AddBreadcrumb adds a breadcrumb to track the path to an error.
func (h *SentryHelper) AddBreadcrumb(category, message string, level sentry.Level, data map[string]interface{}) {
	if !h.enabled || message == "" {
		return
	}

	sentry.CurrentHub().AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     level,
		Data:      data,
		Timestamp: time.Now(),
	}, nil)
}

// CaptureError captures an error tagged with the component and operation that produced it.
func (h *SentryHelper) CaptureError(err error, component string, operation string) {
	if !h.enabled || err == nil {
		return
	}

	tags := map[string]string{
		"component": component,
		"operation": operation,
	}

	h.CaptureExceptionWithContext(err, tags, nil)
}

// CaptureWarning captures a warning message with context.
func (h *SentryHelper) CaptureWarning(msg string, component string, operation string) {
	if !h.enabled || msg == "" {
		return
	}

	tags := map[string]string{
		"component": component,
		"operation": operation,
		"level":     "warning",
	}

	h.CaptureMessageWithContext(msg, tags, nil)
}

// SafeFlush flushes buffered events, giving up after timeout.
func (h *SentryHelper) SafeFlush(timeout time.Duration) {
	if !h.enabled {
		return
	}

	if !sentry.Flush(timeout) {
		h.logger.Warn("Sentry flush timeout", "timeout", timeout)
	}
}
