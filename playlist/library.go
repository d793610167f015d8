// Package playlist holds the track library and the shuffle engine built on top of it.
package playlist

import (
	"iter"
	"slices"
	"strings"
)

// Library is the canonical ordered collection of tracks.
// Indices are always contiguous in [0, Size()). Duplicates are allowed.
//
// Library is not safe for concurrent use; the owner is expected to
// serialize access and to regenerate its Shuffler after every mutation.
type Library struct {
	tracks []Track
}

// NewLibrary creates a library holding a copy of the given tracks.
func NewLibrary(tracks ...Track) *Library {
	return &Library{
		tracks: slices.Clone(tracks),
	}
}

// Add appends a track to the end of the library.
func (l *Library) Add(track Track) {
	l.tracks = append(l.tracks, track)
}

// RemoveAt removes the track at index and shifts the following tracks down by one.
func (l *Library) RemoveAt(index int) (Track, error) {
	if err := l.validate(index); err != nil {
		return Track{}, err
	}

	removed := l.tracks[index]
	l.tracks = slices.Delete(l.tracks, index, index+1)
	return removed, nil
}

// Get returns the track at index.
func (l *Library) Get(index int) (Track, error) {
	if err := l.validate(index); err != nil {
		return Track{}, err
	}
	return l.tracks[index], nil
}

// Size returns the number of tracks.
func (l *Library) Size() int {
	return len(l.tracks)
}

// CheckIndex reports whether index addresses a track, and if not, why.
func (l *Library) CheckIndex(index int) IndexStatus {
	switch {
	case index < 0:
		return IndexNegative
	case index >= len(l.tracks):
		return IndexTooLarge
	default:
		return IndexValid
	}
}

func (l *Library) validate(index int) error {
	if status := l.CheckIndex(index); status != IndexValid {
		return &IndexError{Index: index, Status: status}
	}
	return nil
}

// IndexOf returns the index of the first track with the given file name, or -1.
func (l *Library) IndexOf(filename string) int {
	return slices.IndexFunc(l.tracks, func(t Track) bool {
		return t.Filename == filename
	})
}

// All yields every track in library order.
func (l *Library) All() iter.Seq[Track] {
	return func(yield func(Track) bool) {
		for _, track := range l.tracks {
			if !yield(track) {
				return
			}
		}
	}
}

// FindByArtist yields, in library order, every track whose artist contains
// query. Matching is case-sensitive and an empty query matches every track.
// The sequence reads the library when iterated and can be ranged over again.
func (l *Library) FindByArtist(query string) iter.Seq[Track] {
	return func(yield func(Track) bool) {
		for _, track := range l.tracks {
			if !strings.Contains(track.Artist, query) {
				continue
			}
			if !yield(track) {
				return
			}
		}
	}
}

// Tracks returns a copy of the tracks in library order.
func (l *Library) Tracks() []Track {
	return slices.Clone(l.tracks)
}
