//go:build !((linux && cgo) || windows || darwin)

package player

import (
	"log/slog"

	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
)

// AudioAvailable indicates whether audio output is compiled in.
// Audio on linux needs cgo for the native sound libraries.
const AudioAvailable = false

// BeepDevice only logs on builds without audio support.
type BeepDevice struct {
	*NopDevice
}

// NewBeepDevice creates a logging stand-in for the speaker device.
func NewBeepDevice(logger *slog.Logger, sentryHelper *sentryhelper.SentryHelper) *BeepDevice {
	if sentryHelper != nil {
		sentryHelper.CaptureWarning("audio output not compiled in", "player", "init")
	}
	return &BeepDevice{NopDevice: NewNopDevice(logger)}
}
