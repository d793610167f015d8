// Package player provides playback devices that the organizer drives.
package player

import (
	"log/slog"
)

// Device plays one track at a time. Both calls are fire-and-forget:
// failures are reported by the device itself and never returned.
type Device interface {
	Start(locator string)
	Stop()
}

// Finisher is implemented by devices that can tell when a track played to
// the end on its own. fn is called without any device lock held.
type Finisher interface {
	SetOnFinished(fn func(locator string))
}

var (
	_ Device = (*NopDevice)(nil)
	_ Device = (*BeepDevice)(nil)
)

// NopDevice logs what it would play. Used with --mute and on builds
// without audio support.
type NopDevice struct {
	logger *slog.Logger
}

// NewNopDevice creates a NopDevice.
func NewNopDevice(logger *slog.Logger) *NopDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &NopDevice{logger: logger.With("component", "player", "device", "nop")}
}

func (d *NopDevice) Start(locator string) {
	d.logger.Debug("Start", "track", locator)
}

func (d *NopDevice) Stop() {
	d.logger.Debug("Stop")
}
