package playlist

import "fmt"

// Track represents the metadata of a single audio file.
// Tracks are values and are never modified after creation.
type Track struct {
	Filename string
	Artist   string
	Title    string
}

// NewTrack creates a track from caller supplied fields.
func NewTrack(filename, artist, title string) Track {
	return Track{
		Filename: filename,
		Artist:   artist,
		Title:    title,
	}
}

// GetPath returns the content locator handed to the playback device.
func (t Track) GetPath() string {
	return t.Filename
}

// String returns the "artist - title" display form.
func (t Track) String() string {
	return t.Artist + " - " + t.Title
}

// Details returns a one-line description including the file name.
func (t Track) Details() string {
	return fmt.Sprintf("%s: %s  (file: %s)", t.Artist, t.Title, t.Filename)
}
