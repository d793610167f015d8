//go:build (linux && cgo) || windows || darwin

package player

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	mp3 "github.com/hajimehoshi/go-mp3"

	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
)

// AudioAvailable indicates whether audio output is compiled in.
const AudioAvailable = true

var _ Finisher = (*BeepDevice)(nil)

const speakerSampleRate = beep.SampleRate(44100)

// BeepDevice plays MP3 files on the default speaker.
type BeepDevice struct {
	mu           sync.Mutex
	initialized  bool
	file         *os.File
	ctrl         *beep.Ctrl
	playbackID   uint64 // Incremented on every Start, used to ignore stale end callbacks
	onFinished   func(locator string)
	logger       *slog.Logger
	sentryHelper *sentryhelper.SentryHelper
}

// NewBeepDevice creates a device. The speaker is opened on the first Start.
func NewBeepDevice(logger *slog.Logger, sentryHelper *sentryhelper.SentryHelper) *BeepDevice {
	if logger == nil {
		logger = slog.Default()
	}
	if sentryHelper == nil {
		sentryHelper = sentryhelper.NewSentryHelper(false, logger)
	}
	return &BeepDevice{
		logger:       logger.With("component", "player", "device", "beep"),
		sentryHelper: sentryHelper,
	}
}

// SetOnFinished registers fn to be called when a track plays to the end.
func (d *BeepDevice) SetOnFinished(fn func(locator string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onFinished = fn
}

// Start decodes locator and plays it. Any running track is stopped first.
func (d *BeepDevice) Start(locator string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	if err := d.startLocked(locator); err != nil {
		d.logger.Error("Failed to start playback", "track", locator, "error", err)
		d.sentryHelper.CaptureError(err, "player", "start")
	}
}

func (d *BeepDevice) startLocked(locator string) error {
	file, err := os.Open(locator)
	if err != nil {
		return fmt.Errorf("opening %s: %w", locator, err)
	}

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("decoding %s: %w", locator, err)
	}

	if !d.initialized {
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			file.Close()
			return fmt.Errorf("initializing speaker: %w", err)
		}
		d.initialized = true
	}

	source := newPCMStreamer(decoder)
	resampled := beep.Resample(4, beep.SampleRate(decoder.SampleRate()), speakerSampleRate, source)

	d.file = file
	d.ctrl = &beep.Ctrl{Streamer: resampled}
	d.playbackID++
	id := d.playbackID

	speaker.Play(beep.Seq(d.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine; release resources off it.
		go d.onTrackEnd(id, locator, source)
	})))

	d.logger.Info("Playback started", "track", locator, "sample_rate", decoder.SampleRate())
	return nil
}

// onTrackEnd closes the file of a track that played to completion and
// reports it to the finish callback.
func (d *BeepDevice) onTrackEnd(id uint64, locator string, source *pcmStreamer) {
	d.mu.Lock()
	if id != d.playbackID {
		d.mu.Unlock()
		return
	}
	if err := source.Err(); err != nil {
		d.logger.Error("Playback ended with error", "error", err)
		d.sentryHelper.CaptureError(err, "player", "stream")
	}
	d.closeFileLocked()
	d.ctrl = nil
	onFinished := d.onFinished
	d.mu.Unlock()

	// The callback may call back into Start or Stop.
	if onFinished != nil {
		onFinished(locator)
	}
}

// Stop silences the speaker and releases the current track.
func (d *BeepDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
}

func (d *BeepDevice) stopLocked() {
	if d.initialized {
		speaker.Clear()
	}
	d.playbackID++
	d.ctrl = nil
	d.closeFileLocked()
}

func (d *BeepDevice) closeFileLocked() {
	if d.file == nil {
		return
	}
	if err := d.file.Close(); err != nil {
		d.logger.Warn("Failed to close track file", "error", err)
	}
	d.file = nil
}
