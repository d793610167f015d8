// Package organizer ties the track library, the shuffle engine and a playback
// device together and serializes access to them.
package organizer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/getsentry/sentry-go"

	"github.com/aposazhennikov/music-organizer/loader"
	"github.com/aposazhennikov/music-organizer/logger"
	"github.com/aposazhennikov/music-organizer/metrics"
	"github.com/aposazhennikov/music-organizer/player"
	"github.com/aposazhennikov/music-organizer/playlist"
	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
)

// TrackReader loads tracks from storage.
type TrackReader interface {
	ReadTracks(dir, ext string) ([]playlist.Track, error)
	ReadTrack(path string) (playlist.Track, error)
}

// Status is a point-in-time view of the organizer state.
type Status struct {
	Tracks        int
	ShuffleLength int
	ShuffleCursor int
	LastPlayed    int
	NowPlaying    *playlist.Track
}

// Option configures an Organizer.
type Option func(*Organizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Organizer) { o.logger = l }
}

// WithSentry sets the error reporter.
func WithSentry(h *sentryhelper.SentryHelper) Option {
	return func(o *Organizer) { o.sentryHelper = h }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Organizer) { o.metrics = c }
}

// WithShuffler replaces the default randomly seeded shuffler.
func WithShuffler(s *playlist.Shuffler) Option {
	return func(o *Organizer) { o.shuffler = s }
}

// Organizer owns a library and its shuffler and drives a playback device.
// Every library mutation regenerates the shuffled sequence under the same
// lock, so observers never see a stale permutation.
type Organizer struct {
	mu           sync.Mutex
	library      *playlist.Library
	shuffler     *playlist.Shuffler
	device       player.Device
	nowPlaying   *playlist.Track
	logger       *slog.Logger
	sentryHelper *sentryhelper.SentryHelper
	metrics      *metrics.Collector
}

// New creates an organizer with an empty library.
func New(device player.Device, opts ...Option) *Organizer {
	o := &Organizer{
		library: playlist.NewLibrary(),
		device:  device,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = logger.WithComponent(o.logger, "organizer")
	if o.sentryHelper == nil {
		o.sentryHelper = sentryhelper.NewSentryHelper(false, o.logger)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.shuffler == nil {
		o.shuffler = playlist.NewShuffler(nil)
	}

	o.shuffler.Regenerate(o.library)
	o.metrics.SetLibrarySize(0)

	if f, ok := device.(player.Finisher); ok {
		f.SetOnFinished(o.trackFinished)
	}
	return o
}

// Metrics returns the collector the organizer reports to.
func (o *Organizer) Metrics() *metrics.Collector {
	return o.metrics
}

// Load reads every track with extension ext under dir into the library.
// It returns the number of tracks added.
func (o *Organizer) Load(reader TrackReader, dir, ext string) (int, error) {
	tracks, err := reader.ReadTracks(dir, ext)
	if err != nil {
		o.sentryHelper.CaptureError(err, "organizer", "load")
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, track := range tracks {
		o.library.Add(track)
	}
	o.regenerateLocked("load")
	return len(tracks), nil
}

// AddTrack appends track to the library.
func (o *Organizer) AddTrack(track playlist.Track) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.library.Add(track)
	o.regenerateLocked("add")
}

// AddFile appends a track whose artist and title come from the file name.
func (o *Organizer) AddFile(filename string) playlist.Track {
	track := loader.TrackFromFilename(filename)
	o.AddTrack(track)
	return track
}

// RemoveTrack removes the track at index.
func (o *Organizer) RemoveTrack(index int) (playlist.Track, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed, err := o.library.RemoveAt(index)
	if err != nil {
		o.rejectLocked(err, "remove")
		return playlist.Track{}, err
	}
	o.regenerateLocked("remove")
	return removed, nil
}

// RemoveFile removes every track with the given file name and returns how
// many were removed.
func (o *Organizer) RemoveFile(filename string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for i := o.library.IndexOf(filename); i >= 0; i = o.library.IndexOf(filename) {
		if _, err := o.library.RemoveAt(i); err != nil {
			break
		}
		removed++
	}
	if removed > 0 {
		o.regenerateLocked("remove")
	}
	return removed
}

// Track returns the track at index.
func (o *Organizer) Track(index int) (playlist.Track, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.library.Get(index)
}

// CheckIndex reports whether index addresses a track, and if not, why.
func (o *Organizer) CheckIndex(index int) playlist.IndexStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.library.CheckIndex(index)
}

// Size returns the number of tracks in the library.
func (o *Organizer) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.library.Size()
}

// Tracks returns the library in order.
func (o *Organizer) Tracks() []playlist.Track {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.library.Tracks()
}

// ByArtist returns the tracks whose artist contains query.
func (o *Organizer) ByArtist(query string) []playlist.Track {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Collect(o.library.FindByArtist(query))
}

// Shuffled returns the current shuffled order.
func (o *Organizer) Shuffled() []playlist.Track {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Collect(o.shuffler.Snapshot())
}

// Reshuffle draws a new shuffled order and rewinds it.
func (o *Organizer) Reshuffle() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.regenerateLocked("reshuffle")
}

// PlayTrack plays the track at index.
func (o *Organizer) PlayTrack(index int) (playlist.Track, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	track, err := o.library.Get(index)
	if err != nil {
		o.rejectLocked(err, "play")
		return playlist.Track{}, err
	}

	o.shuffler.MarkPlayed(index)
	o.startLocked(track, metrics.PolicyDirect, index)
	return track, nil
}

// PlayFirst plays the first track. It reports false on an empty library.
func (o *Organizer) PlayFirst() (playlist.Track, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	track, err := o.library.Get(0)
	if err != nil {
		return playlist.Track{}, false
	}

	o.shuffler.MarkPlayed(0)
	o.startLocked(track, metrics.PolicyDirect, 0)
	return track, true
}

// PlayRandom plays a random track other than the one played last.
func (o *Organizer) PlayRandom() (playlist.Track, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	index, track, err := o.shuffler.PickRandom(o.library)
	if err != nil {
		o.rejectLocked(err, "play_random")
		return playlist.Track{}, err
	}

	o.startLocked(track, metrics.PolicyRandom, index)
	return track, nil
}

// PlayShuffled plays the next track of the shuffled order.
func (o *Organizer) PlayShuffled() (playlist.Track, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, err := o.shuffler.Advance()
	if err != nil {
		o.rejectLocked(err, "play_shuffled")
		return playlist.Track{}, err
	}

	o.startLocked(entry.Track, metrics.PolicyShuffle, entry.Index)
	return entry.Track, nil
}

// Stop stops playback.
func (o *Organizer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.device.Stop()
	o.nowPlaying = nil
}

// NowPlaying returns the track last started, if it has not been stopped.
func (o *Organizer) NowPlaying() (playlist.Track, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.nowPlaying == nil {
		return playlist.Track{}, false
	}
	return *o.nowPlaying, true
}

// Status returns a snapshot of the organizer state.
func (o *Organizer) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := Status{
		Tracks:        o.library.Size(),
		ShuffleLength: o.shuffler.Len(),
		ShuffleCursor: o.shuffler.Cursor(),
		LastPlayed:    o.shuffler.LastPlayed(),
	}
	if o.nowPlaying != nil {
		track := *o.nowPlaying
		status.NowPlaying = &track
	}
	return status
}

// Watch applies watcher events to the library until ctx is done or events
// is closed. Added files are read with reader.
func (o *Organizer) Watch(ctx context.Context, events <-chan loader.Event, reader TrackReader) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			o.applyEvent(event, reader)
		}
	}
}

func (o *Organizer) applyEvent(event loader.Event, reader TrackReader) {
	switch event.Kind {
	case loader.FileAdded:
		track, err := reader.ReadTrack(event.Path)
		if err != nil {
			o.logger.Error("Failed to read added file", "path", event.Path, "error", err)
			o.sentryHelper.CaptureError(err, "organizer", "watch_add")
			return
		}
		o.AddTrack(track)
	case loader.FileRemoved:
		if n := o.RemoveFile(event.Path); n == 0 {
			o.logger.Debug("Removed file was not in the library", "path", event.Path)
		}
	}
}

// trackFinished clears the now-playing track once the device has played it
// to the end. Reports for a track that is no longer current are ignored.
func (o *Organizer) trackFinished(locator string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.nowPlaying == nil || o.nowPlaying.Filename != locator {
		return
	}
	o.nowPlaying = nil
	logger.LogPlaybackEvent(o.logger, slog.LevelDebug, "Track finished", "", locator)
}

// startLocked stops the device, then starts track on it.
func (o *Organizer) startLocked(track playlist.Track, policy string, index int) {
	o.device.Stop()
	o.device.Start(track.Filename)
	o.nowPlaying = &track

	o.metrics.ObservePlay(policy)
	o.sentryHelper.AddBreadcrumb("playback", "start", sentry.LevelInfo, map[string]interface{}{
		"policy": policy,
		"track":  track.Filename,
	})
	logger.LogPlaybackEvent(o.logger, slog.LevelInfo, "Now playing", policy, track.Filename,
		slog.Int("index", index),
		slog.String("details", track.String()),
	)
}

func (o *Organizer) regenerateLocked(operation string) {
	o.shuffler.Regenerate(o.library)

	o.metrics.SetLibrarySize(o.library.Size())
	o.metrics.ObserveReshuffle()
	logger.LogLibraryEvent(o.logger, slog.LevelInfo, "Shuffled order regenerated", operation, o.library.Size())
}

// rejectLocked records a user-facing failure. These are not reported to Sentry.
func (o *Organizer) rejectLocked(err error, operation string) {
	reason := rejectionReason(err)
	o.metrics.ObserveRejection(reason)
	o.logger.Info("Request rejected", "operation", operation, "reason", reason, "error", err)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, playlist.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, playlist.ErrEmptyLibrary):
		return "empty_library"
	case errors.Is(err, playlist.ErrInsufficientTracks):
		return "insufficient_tracks"
	case errors.Is(err, playlist.ErrShuffleExhausted):
		return "shuffle_exhausted"
	default:
		return "other"
	}
}
