package playlist

import (
	"errors"
	"fmt"
)

// Conditions reported by the library and the shuffler. None of them change state.
var (
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrEmptyLibrary       = errors.New("library is empty")
	ErrInsufficientTracks = errors.New("not enough tracks to play a random track")
	ErrShuffleExhausted   = errors.New("shuffled playlist ended")
)

// IndexStatus is the outcome of an index validity check.
type IndexStatus int

const (
	IndexValid IndexStatus = iota
	IndexNegative
	IndexTooLarge
)

func (s IndexStatus) String() string {
	switch s {
	case IndexValid:
		return "valid"
	case IndexNegative:
		return "negative"
	case IndexTooLarge:
		return "too large"
	default:
		return fmt.Sprintf("IndexStatus(%d)", int(s))
	}
}

// IndexError is returned for an invalid index. It matches ErrIndexOutOfRange
// with errors.Is and keeps the reason so callers can word their message.
type IndexError struct {
	Index  int
	Status IndexStatus
}

func (e *IndexError) Error() string {
	if e.Status == IndexNegative {
		return fmt.Sprintf("index cannot be negative: %d", e.Index)
	}
	return fmt.Sprintf("index is too large: %d", e.Index)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}
