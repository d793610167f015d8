// Package loader reads audio files from disk and turns them into tracks.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dhowden/tag"
	"github.com/samber/lo"

	"github.com/aposazhennikov/music-organizer/playlist"
	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
)

// UnknownArtist is used when neither tags nor the file name name an artist.
const UnknownArtist = "unknown"

// Reader loads tracks from a directory tree.
type Reader struct {
	logger       *slog.Logger
	sentryHelper *sentryhelper.SentryHelper
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger, sentryHelper *sentryhelper.SentryHelper) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if sentryHelper == nil {
		sentryHelper = sentryhelper.NewSentryHelper(false, logger)
	}
	return &Reader{
		logger:       logger.With("component", "loader"),
		sentryHelper: sentryHelper,
	}
}

// ReadTracks walks dir and returns a track for every file with extension ext,
// sorted by path. Files that cannot be read are logged and skipped.
// A missing directory yields no tracks and no error.
func (r *Reader) ReadTracks(dir, ext string) ([]playlist.Track, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warn("Audio directory does not exist", "directory", dir)
		return nil, nil
	}

	var (
		tracks     []playlist.Track
		totalFiles int
		skipped    int
		errorFiles int
	)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			errorFiles++
			r.logger.Error("Error accessing path", "path", path, "error", err)
			r.sentryHelper.CaptureError(fmt.Errorf("accessing %s: %w", path, err), "loader", "walk")
			return nil // Keep walking past unreadable entries.
		}
		if info.IsDir() {
			return nil
		}

		totalFiles++
		if !HasExtension(path, ext) {
			skipped++
			r.logger.Debug("Skipping file with other extension", "file", filepath.Base(path))
			return nil
		}

		track, readErr := r.ReadTrack(path)
		if readErr != nil {
			errorFiles++
			r.logger.Error("Error reading track", "path", path, "error", readErr)
			r.sentryHelper.CaptureError(readErr, "loader", "read_track")
			return nil
		}
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		r.sentryHelper.CaptureError(err, "loader", "walk")
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	slices.SortFunc(tracks, func(a, b playlist.Track) int {
		return strings.Compare(a.Filename, b.Filename)
	})

	r.logger.Info("Library scanned",
		"directory", dir,
		"tracks", len(tracks),
		"files", totalFiles,
		"skipped", skipped,
		"errors", errorFiles,
		"sample", lo.Map(lo.Slice(tracks, 0, 3), func(t playlist.Track, _ int) string { return t.String() }),
	)
	return tracks, nil
}

// ReadTrack builds a track from the tags of the file at path, falling back
// to the file name when tags are missing or incomplete.
func (r *Reader) ReadTrack(path string) (playlist.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return playlist.Track{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	fallback := TrackFromFilename(path)

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		r.logger.Debug("No readable tags, using file name", "path", path, "error", err)
		return fallback, nil
	}

	artist := strings.TrimSpace(metadata.Artist())
	title := strings.TrimSpace(metadata.Title())
	if artist == "" {
		artist = fallback.Artist
	}
	if title == "" {
		title = fallback.Title
	}
	return playlist.NewTrack(path, artist, title), nil
}

// TrackFromFilename derives a track from a file named "Artist-Title.ext".
// Names without a dash get UnknownArtist and the whole base name as title.
func TrackFromFilename(path string) playlist.Track {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	artist, title, found := strings.Cut(base, "-")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !found || artist == "" || title == "" {
		return playlist.NewTrack(path, UnknownArtist, strings.TrimSpace(base))
	}
	return playlist.NewTrack(path, artist, title)
}

// HasExtension reports whether path ends with ext, ignoring case.
func HasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
