package organizer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aposazhennikov/music-organizer/loader"
	"github.com/aposazhennikov/music-organizer/logger"
	"github.com/aposazhennikov/music-organizer/metrics"
	"github.com/aposazhennikov/music-organizer/organizer"
	"github.com/aposazhennikov/music-organizer/playlist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockDevice records the calls made to it.
type MockDevice struct {
	mu    sync.Mutex
	calls []string
}

func (d *MockDevice) Start(locator string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "start "+locator)
}

func (d *MockDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "stop")
}

func (d *MockDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *MockDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// FinishingDevice also reports tracks that play to the end.
type FinishingDevice struct {
	MockDevice
	onFinished func(locator string)
}

func (d *FinishingDevice) SetOnFinished(fn func(locator string)) {
	d.onFinished = fn
}

// MockReader serves tracks from memory.
type MockReader struct {
	tracks []playlist.Track
	err    error
}

func (r *MockReader) ReadTracks(dir, ext string) ([]playlist.Track, error) {
	return r.tracks, r.err
}

func (r *MockReader) ReadTrack(path string) (playlist.Track, error) {
	if r.err != nil {
		return playlist.Track{}, r.err
	}
	return loader.TrackFromFilename(path), nil
}

var (
	heroes   = playlist.NewTrack("a.mp3", "Bowie", "Heroes")
	fame     = playlist.NewTrack("b.mp3", "Bowie", "Fame")
	warmJets = playlist.NewTrack("c.mp3", "Eno", "Here Come the Warm Jets")
)

func newOrganizer(t *testing.T, tracks ...playlist.Track) (*organizer.Organizer, *MockDevice, *metrics.Collector) {
	t.Helper()

	device := &MockDevice{}
	collector := metrics.New()
	org := organizer.New(device,
		organizer.WithLogger(logger.Discard()),
		organizer.WithMetrics(collector),
		organizer.WithShuffler(playlist.NewSeededShuffler(17)),
	)
	for _, track := range tracks {
		org.AddTrack(track)
	}
	return org, device, collector
}

func TestOrganizer_EmptyLibrary(t *testing.T) {
	org, device, collector := newOrganizer(t)

	assert.Equal(t, 0, org.Size())
	assert.Empty(t, org.Shuffled())

	_, err := org.PlayRandom()
	assert.ErrorIs(t, err, playlist.ErrEmptyLibrary)

	_, err = org.PlayShuffled()
	assert.ErrorIs(t, err, playlist.ErrShuffleExhausted)

	_, ok := org.PlayFirst()
	assert.False(t, ok)

	assert.Empty(t, device.Calls(), "failed requests never touch the device")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Rejections("empty_library")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Rejections("shuffle_exhausted")))
}

func TestOrganizer_MutationsRegenerate(t *testing.T) {
	org, _, collector := newOrganizer(t)

	for i, track := range []playlist.Track{heroes, fame, warmJets} {
		org.AddTrack(track)
		assert.ElementsMatch(t, org.Tracks(), org.Shuffled())
		assert.Equal(t, 0, org.Status().ShuffleCursor)
		assert.Equal(t, float64(i+1), testutil.ToFloat64(collector.LibraryTracks()))
	}

	_, err := org.PlayShuffled()
	require.NoError(t, err)
	assert.Equal(t, 1, org.Status().ShuffleCursor)

	removed, err := org.RemoveTrack(0)
	require.NoError(t, err)
	assert.Equal(t, heroes, removed)
	assert.ElementsMatch(t, []playlist.Track{fame, warmJets}, org.Shuffled())
	assert.Equal(t, 0, org.Status().ShuffleCursor)
}

func TestOrganizer_RemoveTrackInvalid(t *testing.T) {
	org, _, collector := newOrganizer(t, heroes, fame, warmJets)
	before := org.Shuffled()

	_, err := org.RemoveTrack(3)
	var idxErr *playlist.IndexError
	require.True(t, errors.As(err, &idxErr))
	assert.Equal(t, playlist.IndexTooLarge, idxErr.Status)

	assert.Equal(t, 3, org.Size())
	assert.Equal(t, before, org.Shuffled(), "a rejected removal keeps the shuffled order")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Rejections("index_out_of_range")))
}

func TestOrganizer_PlayTrack(t *testing.T) {
	org, device, collector := newOrganizer(t, heroes, fame, warmJets)

	track, err := org.PlayTrack(1)
	require.NoError(t, err)
	assert.Equal(t, fame, track)
	assert.Equal(t, []string{"stop", "start b.mp3"}, device.Calls())

	playing, ok := org.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, fame, playing)
	assert.Equal(t, 1, org.Status().LastPlayed)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Plays(metrics.PolicyDirect)))

	device.Reset()
	_, err = org.PlayTrack(-1)
	require.ErrorIs(t, err, playlist.ErrIndexOutOfRange)
	assert.Empty(t, device.Calls())
	assert.Equal(t, 1, org.Status().LastPlayed)

	org.Stop()
	_, ok = org.NowPlaying()
	assert.False(t, ok)
	assert.Equal(t, []string{"stop"}, device.Calls())
}

func TestOrganizer_PlayFirst(t *testing.T) {
	org, device, _ := newOrganizer(t, heroes, fame)

	track, ok := org.PlayFirst()
	require.True(t, ok)
	assert.Equal(t, heroes, track)
	assert.Equal(t, []string{"stop", "start a.mp3"}, device.Calls())
	assert.Equal(t, 0, org.Status().LastPlayed)
}

func TestOrganizer_PlayRandomSingleTrack(t *testing.T) {
	org, device, _ := newOrganizer(t, heroes)

	_, err := org.PlayRandom()
	assert.ErrorIs(t, err, playlist.ErrInsufficientTracks)
	assert.Empty(t, device.Calls())
}

func TestOrganizer_PlayRandomAvoidsLastPlayedFromAnyPath(t *testing.T) {
	org, _, collector := newOrganizer(t, heroes, fame)

	_, err := org.PlayTrack(0)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		previous := org.Status().LastPlayed
		_, err := org.PlayRandom()
		require.NoError(t, err)
		assert.NotEqual(t, previous, org.Status().LastPlayed)
	}

	// The shuffled path also moves the marker.
	org.Reshuffle()
	_, err = org.PlayShuffled()
	require.NoError(t, err)
	afterShuffle := org.Status().LastPlayed

	track, err := org.PlayRandom()
	require.NoError(t, err)
	assert.NotEqual(t, afterShuffle, org.Status().LastPlayed)
	assert.Contains(t, []playlist.Track{heroes, fame}, track)
	assert.Equal(t, 21.0, testutil.ToFloat64(collector.Plays(metrics.PolicyRandom)))
}

func TestOrganizer_PlayShuffledUntilExhausted(t *testing.T) {
	org, device, _ := newOrganizer(t, heroes, fame, warmJets)
	order := org.Shuffled()

	for i := 0; i < org.Size(); i++ {
		track, err := org.PlayShuffled()
		require.NoError(t, err)
		assert.Equal(t, order[i], track)
	}

	device.Reset()
	_, err := org.PlayShuffled()
	require.ErrorIs(t, err, playlist.ErrShuffleExhausted)
	assert.Empty(t, device.Calls())

	org.Reshuffle()
	_, err = org.PlayShuffled()
	assert.NoError(t, err)
}

func TestOrganizer_LastPlayedIsLibraryIndex(t *testing.T) {
	org, _, _ := newOrganizer(t, heroes, fame, warmJets)

	for i := 0; i < org.Size(); i++ {
		track, err := org.PlayShuffled()
		require.NoError(t, err)

		lastPlayed, err := org.Track(org.Status().LastPlayed)
		require.NoError(t, err)
		assert.Equal(t, track, lastPlayed)
	}
}

func TestOrganizer_ByArtist(t *testing.T) {
	org, _, _ := newOrganizer(t, heroes, fame, warmJets)

	assert.Equal(t, []playlist.Track{heroes, fame}, org.ByArtist("Bowie"))
	assert.Equal(t, []playlist.Track{heroes, fame, warmJets}, org.ByArtist(""))
	assert.Empty(t, org.ByArtist("Iggy"))
}

func TestOrganizer_AddFile(t *testing.T) {
	org, _, _ := newOrganizer(t)

	track := org.AddFile("/music/Eno-Baby's On Fire.mp3")
	assert.Equal(t, "Eno", track.Artist)
	assert.Equal(t, "Baby's On Fire", track.Title)
	assert.Equal(t, 1, org.Size())
}

func TestOrganizer_Load(t *testing.T) {
	org, _, collector := newOrganizer(t)

	n, err := org.Load(&MockReader{tracks: []playlist.Track{heroes, fame, warmJets}}, "/music", ".mp3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []playlist.Track{heroes, fame, warmJets}, org.Tracks())
	assert.ElementsMatch(t, org.Tracks(), org.Shuffled())
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.LibraryTracks()))

	_, err = org.Load(&MockReader{err: errors.New("disk on fire")}, "/music", ".mp3")
	assert.Error(t, err)
	assert.Equal(t, 3, org.Size())
}

func TestOrganizer_RemoveFile(t *testing.T) {
	org, _, _ := newOrganizer(t, heroes, fame, heroes, warmJets)

	assert.Equal(t, 2, org.RemoveFile("a.mp3"))
	assert.Equal(t, []playlist.Track{fame, warmJets}, org.Tracks())
	assert.Equal(t, 0, org.RemoveFile("a.mp3"))
}

func TestOrganizer_Watch(t *testing.T) {
	org, _, _ := newOrganizer(t, heroes)
	events := make(chan loader.Event)
	done := make(chan struct{})

	go func() {
		defer close(done)
		org.Watch(context.Background(), events, &MockReader{})
	}()

	events <- loader.Event{Kind: loader.FileAdded, Path: "/music/Eno-Needles in the Camel's Eye.mp3"}
	events <- loader.Event{Kind: loader.FileRemoved, Path: "a.mp3"}
	events <- loader.Event{Kind: loader.FileRemoved, Path: "unknown.mp3"}
	close(events)
	<-done

	tracks := org.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "Eno", tracks[0].Artist)
	assert.ElementsMatch(t, tracks, org.Shuffled())
}

func TestOrganizer_WatchStopsOnContext(t *testing.T) {
	org, _, _ := newOrganizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		org.Watch(ctx, make(chan loader.Event), &MockReader{})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestOrganizer_ConcurrentMutationsKeepPermutation(t *testing.T) {
	org, _, _ := newOrganizer(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				org.AddTrack(playlist.NewTrack(fmt.Sprintf("%d-%d.mp3", w, i), "A", "T"))
				if i%3 == 0 {
					_, _ = org.RemoveTrack(0)
				}
				_, _ = org.PlayShuffled()
				_, _ = org.PlayRandom()
			}
		}(w)
	}
	wg.Wait()

	assert.ElementsMatch(t, org.Tracks(), org.Shuffled())
	assert.Equal(t, org.Size(), org.Status().ShuffleLength)
}

func TestOrganizer_TrackFinishedClearsNowPlaying(t *testing.T) {
	device := &FinishingDevice{}
	org := organizer.New(device, organizer.WithLogger(logger.Discard()))
	org.AddTrack(heroes)
	org.AddTrack(fame)
	require.NotNil(t, device.onFinished, "the organizer subscribes to finished tracks")

	_, err := org.PlayTrack(0)
	require.NoError(t, err)
	_, err = org.PlayTrack(1)
	require.NoError(t, err)

	// A report for the track that was replaced changes nothing.
	device.onFinished(heroes.Filename)
	playing, ok := org.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, fame, playing)

	device.onFinished(fame.Filename)
	_, ok = org.NowPlaying()
	assert.False(t, ok)
	assert.Nil(t, org.Status().NowPlaying)
	assert.Equal(t, 1, org.Status().LastPlayed, "finishing keeps the last-played marker")
}

func TestOrganizer_Metrics(t *testing.T) {
	org, _, collector := newOrganizer(t, heroes, fame)

	assert.Same(t, collector, org.Metrics())

	_, err := org.PlayRandom()
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(org.Metrics().Plays(metrics.PolicyRandom)))
}
