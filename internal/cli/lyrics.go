package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/lrclib"
	"github.com/llehouerou/pocketwaves/internal/lyrics"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

func newLyricsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lyrics",
		Short: "Show or download track lyrics",
	}

	var force bool
	fetch := &cobra.Command{
		Use:   "fetch [track]...",
		Short: "Download lyrics from lrclib (all tracks without lyrics by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var targets []library.Track
				if len(args) == 0 {
					all, err := a.lib.AllTracks(ctx)
					if err != nil {
						return errmsg.Wrap(errmsg.OpLibraryLoad, err)
					}
					targets = all
				}
				for _, arg := range args {
					t, err := resolveTrack(ctx, a.lib, arg)
					if err != nil {
						return errmsg.WrapWith(errmsg.OpLyricsFetch, arg, err)
					}
					targets = append(targets, *t)
				}

				client := lrclib.New(lrclib.WithBaseURL(a.cfg.Lyrics.APIURL))
				return fetchLyrics(ctx, a, client, targets, force, cmd.OutOrStdout())
			})
		},
	}
	fetch.Flags().BoolVarP(&force, "force", "f", false, "replace lyrics that are already stored")

	show := &cobra.Command{
		Use:   "show <track>",
		Short: "Print the stored lyrics of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				t, err := resolveTrack(ctx, a.lib, args[0])
				if err != nil {
					return errmsg.WrapWith(errmsg.OpLibraryLoad, args[0], err)
				}
				out := cmd.OutOrStdout()
				lyr := lyrics.Parse(t.LRC)
				if lyr == nil {
					fmt.Fprintf(out, "No lyrics for %s\n", t.Title)
					return nil
				}
				for _, line := range lyr.Lines {
					if lyr.Synced {
						fmt.Fprintf(out, "%6s  %s\n", formatDuration(line.Time), sanitize(line.Text))
					} else {
						fmt.Fprintln(out, sanitize(line.Text))
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(fetch, show)
	return cmd
}

// fetchLyrics looks up lyrics for each track and stores them in the library
// and in a sidecar next to the audio file, so they survive a rebuild.
func fetchLyrics(ctx context.Context, a *app, client *lrclib.Client, tracks []library.Track, force bool, out io.Writer) error {
	var (
		errs    []error
		fetched int
		tried   int
	)
	for _, t := range tracks {
		if t.LRC != "" && !force {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tried++

		artist, album := t.Artist, t.Album
		if artist == tags.UnknownArtist {
			artist = ""
		}
		if album == tags.UnknownAlbum {
			album = ""
		}
		res, err := client.Find(ctx, artist, t.Title, album, t.Duration)
		if errors.Is(err, lrclib.ErrNotFound) {
			fmt.Fprintf(out, "No lyrics for %s\n", t.Title)
			continue
		}
		if err != nil {
			errs = append(errs, errmsg.WrapWith(errmsg.OpLyricsFetch, t.Title, err))
			continue
		}

		t.LRC = res.Text()
		if err := os.WriteFile(lyrics.SidecarPath(t.URI), []byte(t.LRC+"\n"), 0o644); err != nil {
			a.log.Warn("write lyrics sidecar", zap.String("path", t.URI), zap.Error(err))
		}
		if err := a.lib.UpsertTracks(ctx, []library.Track{t}); err != nil {
			errs = append(errs, errmsg.WrapWith(errmsg.OpLyricsSave, t.Title, err))
			continue
		}
		fetched++
		fmt.Fprintf(out, "Fetched lyrics for %s\n", t.Title)
	}
	fmt.Fprintf(out, "Fetched lyrics for %d of %d tracks\n", fetched, tried)
	return errors.Join(errs...)
}
