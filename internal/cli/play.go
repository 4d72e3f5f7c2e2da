package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/mpris"
	"github.com/llehouerou/pocketwaves/internal/notify"
	"github.com/llehouerou/pocketwaves/internal/playback"
	"github.com/llehouerou/pocketwaves/internal/stderr"
)

type playFlags struct {
	playlist  string
	favorites bool
	artist    string
	album     string
	notify    bool
	mpris     bool
}

func newPlayCommand(opts *rootOptions) *cobra.Command {
	var flags playFlags
	cmd := &cobra.Command{
		Use:   "play [query]...",
		Short: "Play the library, a search, an artist, an album or a playlist",
		Long: `Play tracks and read commands from standard input, one per line:

  p      pause or resume        n      next track
  b      previous / restart     s      toggle shuffle
  r      cycle repeat mode      f      toggle favorite
  l      toggle lyrics          + -    volume up or down
  seek   jump to m:ss           queue  show the queue
  i      show position          q      quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				queue, title, origin, err := buildQueue(ctx, a, flags, strings.Join(args, " "))
				if err != nil {
					return errmsg.Wrap(errmsg.OpLibraryLoad, err)
				}
				if len(queue) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to play")
					return nil
				}

				// Console logs go to stderr themselves.
				if opts.captureStderr && !a.cfg.Log.Console {
					if c, err := stderr.Start(a.log.Named("native")); err == nil {
						defer c.Stop()
					} else {
						a.log.Debug("capture stderr", zap.Error(err))
					}
				}

				backend := opts.newBackend(a)
				if c, ok := backend.(io.Closer); ok {
					defer c.Close()
				}
				eng := playback.New(backend,
					playback.WithLogger(a.log.Named("playback")),
					playback.WithSettings(a.state),
					playback.WithFavorites(a.lists),
					playback.WithHistory(a.lib),
					playback.WithSettleDelay(a.cfg.Playback.Settle()),
					playback.WithRestartThreshold(a.cfg.Playback.RestartThreshold()),
				)
				defer eng.Close()

				s := &session{eng: eng, backend: backend, out: cmd.OutOrStdout()}
				if flags.mpris || a.cfg.Playback.MPRIS {
					var mopts []mpris.Option
					if vc, ok := backend.(volumeControl); ok {
						mopts = append(mopts, mpris.WithVolume(vc))
					}
					m := mpris.New(eng, a.log.Named("mpris"), mopts...)
					defer m.Close()
				}
				if (flags.notify || a.cfg.Playback.Notify) && opts.newNotifier != nil {
					n, err := opts.newNotifier()
					if err != nil {
						a.log.Debug("desktop notifications unavailable", zap.Error(err))
					} else {
						s.announcer = notify.NewAnnouncer(n, a.cfg.Playback.NotifyTimeout(), a.log.Named("notify"))
						defer s.announcer.Close()
					}
				}
				return s.run(ctx, queue, title, origin, cmd.InOrStdin())
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.playlist, "playlist", "p", "", "play a playlist by id")
	f.BoolVar(&flags.favorites, "favorites", false, "play favorite tracks")
	f.StringVar(&flags.artist, "artist", "", "play an artist")
	f.StringVar(&flags.album, "album", "", "play an album (with --artist to disambiguate)")
	f.BoolVar(&flags.notify, "notify", false, "show a desktop notification for each track")
	f.BoolVar(&flags.mpris, "mpris", false, "publish the player on D-Bus for media keys")
	return cmd
}

// buildQueue picks the tracks to play and the origin describing them.
func buildQueue(ctx context.Context, a *app, f playFlags, query string) ([]library.Track, string, playback.Origin, error) {
	switch {
	case f.playlist != "":
		p, err := a.lists.Get(ctx, f.playlist)
		if err != nil {
			return nil, "", nil, err
		}
		tracks, err := a.lists.Tracks(ctx, p.ID)
		return tracks, "", playback.ByPlaylist{PlaylistID: p.ID, Title: p.Title}, err
	case f.favorites:
		tracks, err := a.lists.FavoriteTracks(ctx)
		return tracks, "", playback.Favorites{}, err
	case f.album != "":
		tracks, err := a.lib.TracksByAlbum(ctx, f.album, f.artist)
		return tracks, "", playback.ByAlbum{Album: f.album, Artist: f.artist}, err
	case f.artist != "":
		tracks, err := a.lib.TracksByArtist(ctx, f.artist)
		return tracks, "", playback.ByArtist{Artist: f.artist}, err
	case query != "":
		tracks, err := a.lib.Search(ctx, query, 0)
		return tracks, "", playback.SearchResults{Query: query}, err
	default:
		tracks, err := a.lib.AllTracks(ctx)
		return tracks, "", playback.AllSongs{}, err
	}
}

// volumeControl is implemented by backends with adjustable output.
type volumeControl interface {
	Volume() float64
	SetVolume(level float64)
}

type session struct {
	eng       *playback.Engine
	backend   playback.Backend
	out       io.Writer
	announcer *notify.Announcer
	lyricIdx  int
}

var errQuit = errors.New("quit")

func (s *session) run(ctx context.Context, queue []library.Track, title string, origin playback.Origin, in io.Reader) error {
	sub := s.eng.Subscribe()
	s.lyricIdx = -1

	if err := s.eng.PlayQueue(ctx, queue[0], queue, title, origin); err != nil {
		fmt.Fprintln(s.out, errmsg.Format(errmsg.OpPlaybackStart, err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.TrackChanged:
			s.trackChanged(ev)
		case ev := <-sub.Error:
			fmt.Fprintln(s.out, errmsg.FormatWith(errmsg.OpPlaybackStart, ev.URI, ev.Err))
		case ev := <-sub.FavoriteChanged:
			if ev.Favorite {
				fmt.Fprintln(s.out, "Added to favorites")
			} else {
				fmt.Fprintln(s.out, "Removed from favorites")
			}
		case <-sub.PositionChanged:
			s.printLyric()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := s.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintln(s.out, err)
			}
		}
	}
}

func (s *session) handle(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "", "p":
		return s.eng.TogglePlayPause(ctx)
	case "n":
		return s.eng.PlayNext(ctx)
	case "b":
		return s.eng.PlayPrev(ctx)
	case "s":
		fmt.Fprintf(s.out, "Shuffle %s\n", onOff(s.eng.ToggleShuffle(ctx)))
	case "r":
		fmt.Fprintf(s.out, "Repeat %s\n", s.eng.ToggleRepeatMode(ctx))
	case "l":
		visible := s.eng.ToggleLyricsView(ctx)
		fmt.Fprintf(s.out, "Lyrics %s\n", onOff(visible))
		s.lyricIdx = -1
	case "f":
		snap := s.eng.Snapshot()
		if snap.Current == nil {
			return nil
		}
		_, err := s.eng.ToggleFavorite(ctx, snap.Current.ID)
		return errmsg.Wrap(errmsg.OpFavoriteToggle, err)
	case "+", "-":
		vc, ok := s.backend.(volumeControl)
		if !ok {
			return nil
		}
		step := 0.1
		if cmd == "-" {
			step = -step
		}
		vc.SetVolume(vc.Volume() + step)
		fmt.Fprintf(s.out, "Volume %d%%\n", int(vc.Volume()*100+0.5))
	case "seek":
		pos, err := parseDuration(arg)
		if err != nil {
			return err
		}
		return errmsg.Wrap(errmsg.OpPlaybackSeek, s.eng.SeekTo(ctx, pos))
	case "i":
		snap := s.eng.Snapshot()
		if snap.Current == nil {
			fmt.Fprintln(s.out, snap.State)
			return nil
		}
		fmt.Fprintf(s.out, "%s  %s / %s  %s  (repeat %s, shuffle %s)\n",
			snap.State, formatDuration(snap.Position), formatDuration(snap.Duration),
			sanitize(snap.Current.Title), snap.Repeat, onOff(snap.Shuffle))
	case "queue":
		snap := s.eng.Snapshot()
		fmt.Fprintln(s.out, snap.Title)
		for i, t := range snap.Queue {
			marker := "  "
			if i == snap.Index {
				marker = "> "
			}
			fmt.Fprintf(s.out, "%s%3d  %s\n", marker, i+1, cell(t.Title, titleWidth))
		}
	case "q", "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *session) trackChanged(ev playback.TrackChange) {
	s.lyricIdx = -1
	if ev.Current == nil {
		return
	}
	fmt.Fprintf(s.out, "> %s - %s [%s]\n", sanitize(ev.Current.Title), sanitize(ev.Current.Artist), formatDuration(ev.Current.Duration))
	if s.announcer != nil {
		s.announcer.Track(*ev.Current)
	}
}

// printLyric prints the active lyric line when lyrics are visible and the
// line changed.
func (s *session) printLyric() {
	if !s.eng.Snapshot().LyricsVisible {
		return
	}
	lyr, idx := s.eng.CurrentLyrics()
	if lyr == nil || idx < 0 || idx == s.lyricIdx {
		return
	}
	s.lyricIdx = idx
	fmt.Fprintf(s.out, "  %s\n", sanitize(lyr.Lines[idx].Text))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
