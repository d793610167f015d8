// Package shell implements the interactive command surface of the organizer.
// Each input line is parsed as a cobra command line, so every command gets
// flag parsing and help for free.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/aposazhennikov/music-organizer/metrics"
	"github.com/aposazhennikov/music-organizer/organizer"
	"github.com/aposazhennikov/music-organizer/playlist"
)

const prompt = "> "

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// Shell reads commands and runs them against an organizer.
type Shell struct {
	org    *organizer.Organizer
	out    io.Writer
	logger *slog.Logger
}

// New creates a shell writing its output to out.
func New(org *organizer.Organizer, out io.Writer, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		org:    org,
		out:    out,
		logger: logger.With("component", "shell"),
	}
}

// Run reads commands from in until it is exhausted, a quit command is read,
// or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if s.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line. It reports whether the shell should
// exit.
func (s *Shell) Execute(line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}

	root := s.commands()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return false
	case errors.Is(err, errQuit):
		return true
	default:
		s.report(err)
		return false
	}
}

// report prints err as a plain message.
func (s *Shell) report(err error) {
	var idxErr *playlist.IndexError
	switch {
	case errors.As(err, &idxErr):
		switch idxErr.Status {
		case playlist.IndexNegative:
			fmt.Fprintf(s.out, "Index cannot be negative: %d\n", idxErr.Index)
		default:
			fmt.Fprintf(s.out, "Index is too large: %d\n", idxErr.Index)
		}
	case errors.Is(err, playlist.ErrEmptyLibrary):
		fmt.Fprintln(s.out, "The library is empty.")
	case errors.Is(err, playlist.ErrInsufficientTracks):
		fmt.Fprintln(s.out, "Not enough tracks to play a random track.")
	case errors.Is(err, playlist.ErrShuffleExhausted):
		fmt.Fprintln(s.out, "Shuffled playlist ended, use reshuffle to start again.")
	default:
		s.logger.Debug("Command failed", "error", err)
		fmt.Fprintln(s.out, "Error:", err)
	}
}

func (s *Shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "organizer",
		Short:         "Music organizer commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(s.out)
	root.SetErr(s.out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List every track",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s.renderTracks("Track listing", lo.Map(s.org.Tracks(), func(t playlist.Track, i int) indexedTrack {
					return indexedTrack{index: i, track: t}
				}))
				return nil
			},
		},
		&cobra.Command{
			Use:                "show <index>",
			Short:              "Show one track",
			Args:               cobra.ExactArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				track, err := s.org.Track(index)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Track %d: %s\n", index, track.Details())
				return nil
			},
		},
		&cobra.Command{
			Use:                "artist [query...]",
			Short:              "List tracks whose artist contains query",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				// The rest of the line is the query, spaces included.
				query := strings.Join(args, " ")
				s.renderTracks("Tracks by "+query, s.withLibraryIndex(s.org.ByArtist(query)))
				return nil
			},
		},
		s.addCommand(),
		&cobra.Command{
			Use:                "remove <index>",
			Aliases:            []string{"rm"},
			Short:              "Remove a track",
			Args:               cobra.ExactArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				track, err := s.org.RemoveTrack(index)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Removed: %s\n", track)
				return nil
			},
		},
		&cobra.Command{
			Use:                "play <index>",
			Short:              "Play a track",
			Args:               cobra.ExactArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				return s.nowPlaying(s.org.PlayTrack(index))
			},
		},
		&cobra.Command{
			Use:   "first",
			Short: "Play the first track",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				track, ok := s.org.PlayFirst()
				if !ok {
					fmt.Fprintln(s.out, "The library is empty.")
					return nil
				}
				return s.nowPlaying(track, nil)
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop playback",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s.org.Stop()
				return nil
			},
		},
		&cobra.Command{
			Use:   "random",
			Short: "Play a random track other than the last one played",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.nowPlaying(s.org.PlayRandom())
			},
		},
		&cobra.Command{
			Use:   "shuffled",
			Short: "List the shuffled order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s.renderTracks("Shuffled order", lo.Map(s.org.Shuffled(), func(t playlist.Track, i int) indexedTrack {
					return indexedTrack{index: i, track: t}
				}))
				return nil
			},
		},
		&cobra.Command{
			Use:   "next",
			Short: "Play the next track of the shuffled order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.nowPlaying(s.org.PlayShuffled())
			},
		},
		&cobra.Command{
			Use:   "reshuffle",
			Short: "Draw a new shuffled order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s.org.Reshuffle()
				fmt.Fprintln(s.out, "Shuffled order regenerated.")
				return nil
			},
		},
		&cobra.Command{
			Use:     "status",
			Aliases: []string{"info"},
			Short:   "Show library and playback state",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s.renderStatus(s.org.Status())
				return nil
			},
		},
		&cobra.Command{
			Use:   "metrics",
			Short: "Show play, reshuffle and rejection counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				samples, err := s.org.Metrics().Snapshot()
				if err != nil {
					return err
				}
				s.renderMetrics(samples)
				return nil
			},
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit", "q"},
			Short:   "Leave the organizer",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return errQuit
			},
		},
	)
	return root
}

func (s *Shell) addCommand() *cobra.Command {
	var artist, title string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Add a track; artist and title default to the file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var track playlist.Track
			if artist == "" && title == "" {
				track = s.org.AddFile(args[0])
			} else {
				track = playlist.NewTrack(args[0], artist, title)
				s.org.AddTrack(track)
			}
			fmt.Fprintf(s.out, "Added: %s\n", track.Details())
			return nil
		},
	}
	cmd.Flags().StringVarP(&artist, "artist", "a", "", "track artist")
	cmd.Flags().StringVarP(&title, "title", "t", "", "track title")
	return cmd
}

func (s *Shell) nowPlaying(track playlist.Track, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Now playing: %s\n", track)
	return nil
}

type indexedTrack struct {
	index int
	track playlist.Track
}

// withLibraryIndex pairs filtered tracks with their position in the library.
// Duplicate tracks map to successive matching positions.
func (s *Shell) withLibraryIndex(tracks []playlist.Track) []indexedTrack {
	all := s.org.Tracks()
	result := make([]indexedTrack, 0, len(tracks))
	next := 0
	for _, track := range tracks {
		for i := next; i < len(all); i++ {
			if all[i] == track {
				result = append(result, indexedTrack{index: i, track: track})
				next = i + 1
				break
			}
		}
	}
	return result
}

func (s *Shell) renderTracks(title string, tracks []indexedTrack) {
	if len(tracks) == 0 {
		fmt.Fprintln(s.out, "No tracks.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Artist", "Title", "File"})
	for _, it := range tracks {
		t.AppendRow(table.Row{it.index, it.track.Artist, it.track.Title, it.track.Filename})
	}
	t.Render()
}

func (s *Shell) renderStatus(status organizer.Status) {
	nowPlaying := "-"
	if status.NowPlaying != nil {
		nowPlaying = status.NowPlaying.String()
	}
	lastPlayed := "-"
	if status.LastPlayed != playlist.NoTrack {
		lastPlayed = strconv.Itoa(status.LastPlayed)
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Tracks", status.Tracks},
		{"Shuffled", fmt.Sprintf("%d/%d", status.ShuffleCursor, status.ShuffleLength)},
		{"Last played", lastPlayed},
		{"Now playing", nowPlaying},
	})
	t.Render()
}

func (s *Shell) renderMetrics(samples []metrics.Sample) {
	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Labels", "Value"})
	for _, sample := range samples {
		t.AppendRow(table.Row{sample.Name, sample.Labels, sample.Value})
	}
	t.Render()
}

// parseIndex parses a track number. Commands taking one disable flag parsing
// so that negative numbers reach here instead of being read as flags.
func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("not a track number: %q", arg)
	}
	return index, nil
}
