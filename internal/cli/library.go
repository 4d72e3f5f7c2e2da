package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/library"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "import <file|dir>...",
		Short: "Copy files or folders into the import folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sources := make([]string, 0, len(args))
				for _, arg := range args {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return errmsg.WrapWith(errmsg.OpLibraryImport, arg, err)
					}
					sources = append(sources, abs)
				}

				res, err := a.syncer.Import(ctx, sources)
				if err != nil {
					return errmsg.Wrap(errmsg.OpLibraryImport, err)
				}
				out := cmd.OutOrStdout()
				var size int64
				for _, p := range res.Copied {
					if info, err := os.Stat(p); err == nil {
						size += info.Size()
					}
				}
				fmt.Fprintf(out, "Copied %d files (%s)\n", len(res.Copied), humanize.IBytes(uint64(size))) //nolint:gosec // sizes are non-negative
				if len(res.Skipped) > 0 {
					fmt.Fprintf(out, "Skipped %d non-audio files\n", len(res.Skipped))
				}
				failed := make([]string, 0, len(res.Failed))
				for src := range res.Failed {
					failed = append(failed, src)
				}
				slices.Sort(failed)
				for _, src := range failed {
					fmt.Fprintln(cmd.ErrOrStderr(), errmsg.FormatWith(errmsg.OpLibraryImport, src, res.Failed[src]))
				}

				if noSync || len(res.Copied) == 0 {
					return nil
				}
				_, err = runSync(ctx, a, out, cmd.ErrOrStderr(), false)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "do not sync after copying")
	return cmd
}

func newTracksCommand(opts *rootOptions) *cobra.Command {
	var (
		artist    string
		album     string
		favorites bool
		showIDs   bool
	)
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List library tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var (
					tracks []library.Track
					err    error
				)
				switch {
				case favorites:
					tracks, err = a.lists.FavoriteTracks(ctx)
				case album != "":
					tracks, err = a.lib.TracksByAlbum(ctx, album, artist)
				case artist != "":
					tracks, err = a.lib.TracksByArtist(ctx, artist)
				default:
					tracks, err = a.lib.AllTracks(ctx)
				}
				if err != nil {
					return errmsg.Wrap(errmsg.OpLibraryLoad, err)
				}
				writeTracks(cmd.OutOrStdout(), tracks, showIDs)
				fmt.Fprintf(cmd.OutOrStdout(), "%s tracks\n", humanize.Comma(int64(len(tracks))))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&artist, "artist", "", "only tracks by this artist")
	f.StringVar(&album, "album", "", "only tracks on this album (with --artist to disambiguate)")
	f.BoolVar(&favorites, "favorites", false, "only favorite tracks")
	f.BoolVar(&showIDs, "ids", false, "print track ids")
	return cmd
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		limit   int
		showIDs bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search titles, artists and albums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				query := strings.Join(args, " ")
				tracks, err := a.lib.Search(ctx, query, limit)
				if err != nil {
					return errmsg.WrapWith(errmsg.OpLibrarySearch, query, err)
				}
				if len(tracks) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No tracks match %q\n", query)
					return nil
				}
				writeTracks(cmd.OutOrStdout(), tracks, showIDs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "print track ids")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently played tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if clearAll {
					if err := a.lib.ClearHistory(ctx); err != nil {
						return errmsg.Wrap(errmsg.OpHistoryClear, err)
					}
					fmt.Fprintln(out, "History cleared")
					return nil
				}
				entries, err := a.lib.RecentlyPlayed(ctx, limit)
				if err != nil {
					return errmsg.Wrap(errmsg.OpHistoryLoad, err)
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s  %s  %s\n",
						cell(humanize.Time(e.PlayedAt), 16),
						cell(e.Track.Title, titleWidth),
						e.Track.Artist,
					)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget all history")
	return cmd
}

func newDedupeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Merge tracks with identical title, artist, album and duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				removed, err := a.lib.Deduplicate(ctx)
				if err != nil {
					return errmsg.Wrap(errmsg.OpLibraryDedupe, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d duplicate tracks\n", len(removed))
				return nil
			})
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	var keepFile bool
	cmd := &cobra.Command{
		Use:   "rm <track>...",
		Short: "Delete tracks and their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var errs []error
				for _, arg := range args {
					t, err := resolveTrack(ctx, a.lib, arg)
					if err != nil {
						errs = append(errs, errmsg.WrapWith(errmsg.OpLibraryDelete, arg, err))
						continue
					}
					if keepFile {
						err = a.lib.DeleteTrack(ctx, t.ID)
					} else {
						err = a.lib.DeleteTrackAndFile(ctx, t.ID)
					}
					if err != nil {
						errs = append(errs, errmsg.WrapWith(errmsg.OpLibraryDelete, t.Title, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", t.Title)
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&keepFile, "keep-file", false, "only remove the library entry")
	return cmd
}

func newFoldersCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List folders added through import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				folders, err := a.lib.Folders(ctx)
				if err != nil {
					return errmsg.Wrap(errmsg.OpLibraryLoad, err)
				}
				for _, f := range folders {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", cell(humanize.Time(f.AddedAt), 16), f.URI)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <folder>",
		Short: "Forget an imported folder (its files stay in the library)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				dir, err := filepath.Abs(args[0])
				if err != nil {
					return errmsg.WrapWith(errmsg.OpFolderRemove, args[0], err)
				}
				if err := a.lib.RemoveFolder(ctx, dir); err != nil {
					return errmsg.WrapWith(errmsg.OpFolderRemove, dir, err)
				}
				return nil
			})
		},
	})
	return cmd
}
