package playlist

import (
	"iter"
	"math/rand/v2"
)

// NoTrack is the last-played marker value before anything has been played.
const NoTrack = -1

// Entry is one position of the shuffled sequence: the track and the library
// index it had when the sequence was generated.
type Entry struct {
	Index int
	Track Track
}

// Shuffler keeps a random permutation of a library, a cursor into it and the
// last-played marker shared by every playback path.
//
// The permutation holds tracks by value, so it goes stale as soon as the
// library changes. Callers must call Regenerate after every mutation.
type Shuffler struct {
	rng        *rand.Rand
	order      []Entry
	cursor     int
	lastPlayed int
}

// NewShuffler creates an empty shuffler. A nil rng gets a randomly seeded source.
func NewShuffler(rng *rand.Rand) *Shuffler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Shuffler{
		rng:        rng,
		lastPlayed: NoTrack,
	}
}

// NewSeededShuffler creates a shuffler with a deterministic source.
func NewSeededShuffler(seed uint64) *Shuffler {
	return NewShuffler(rand.New(rand.NewPCG(seed, seed)))
}

// Regenerate replaces the shuffled sequence with a fresh uniformly random
// permutation of the library's current tracks and rewinds the cursor.
// The last-played marker is left untouched.
func (s *Shuffler) Regenerate(lib *Library) {
	order := make([]Entry, 0, lib.Size())
	for track := range lib.All() {
		order = append(order, Entry{Index: len(order), Track: track})
	}

	// Fisher-Yates.
	for i := len(order) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	s.order = order
	s.cursor = 0
}

// PickRandom selects a uniformly random library index different from the
// last-played marker and records it as played.
//
// It samples directly among the size-1 remaining candidates, so no retry is
// needed. A marker that no longer addresses a track (never played, or the
// library shrank) excludes nothing.
func (s *Shuffler) PickRandom(lib *Library) (int, Track, error) {
	size := lib.Size()
	switch size {
	case 0:
		return NoTrack, Track{}, ErrEmptyLibrary
	case 1:
		return NoTrack, Track{}, ErrInsufficientTracks
	}

	var index int
	if s.lastPlayed >= 0 && s.lastPlayed < size {
		index = s.rng.IntN(size - 1)
		if index >= s.lastPlayed {
			index++
		}
	} else {
		index = s.rng.IntN(size)
	}

	s.lastPlayed = index
	return index, lib.tracks[index], nil
}

// Advance returns the entry at the cursor, records its library index as
// played and moves the cursor forward. Once every entry has been returned it
// fails with ErrShuffleExhausted until the next Regenerate.
func (s *Shuffler) Advance() (Entry, error) {
	if s.cursor >= len(s.order) {
		return Entry{Index: NoTrack}, ErrShuffleExhausted
	}

	entry := s.order[s.cursor]
	s.cursor++
	s.lastPlayed = entry.Index
	return entry, nil
}

// Snapshot yields the shuffled sequence as it is now, without touching the
// cursor or the last-played marker.
func (s *Shuffler) Snapshot() iter.Seq[Track] {
	order := s.order
	return func(yield func(Track) bool) {
		for _, entry := range order {
			if !yield(entry.Track) {
				return
			}
		}
	}
}

// MarkPlayed records a play that happened outside the shuffler, such as
// playing a track directly by index.
func (s *Shuffler) MarkPlayed(index int) {
	s.lastPlayed = index
}

// LastPlayed returns the library index of the most recent play, or NoTrack.
func (s *Shuffler) LastPlayed() int {
	return s.lastPlayed
}

// Cursor returns the position of the next unplayed entry.
func (s *Shuffler) Cursor() int {
	return s.cursor
}

// Len returns the length of the shuffled sequence.
func (s *Shuffler) Len() int {
	return len(s.order)
}

// Remaining returns how many entries Advance can still return.
func (s *Shuffler) Remaining() int {
	return len(s.order) - s.cursor
}

// Exhausted reports whether the cursor reached the end of the sequence.
func (s *Shuffler) Exhausted() bool {
	return s.cursor == len(s.order)
}
