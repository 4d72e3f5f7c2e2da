package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
)

func newPlaylistCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "playlist",
		Aliases: []string{"pl"},
		Short:   "Manage playlists",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <title>...",
			Short: "Create a playlist and print its id",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					title := strings.Join(args, " ")
					id, err := a.lists.Create(ctx, title)
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistCreate, title, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List playlists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					lists, err := a.lists.List(ctx)
					if err != nil {
						return errmsg.Wrap(errmsg.OpPlaylistLoad, err)
					}
					for _, p := range lists {
						fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %4d tracks  %s\n",
							p.ID, cell(p.Title, titleWidth), p.TrackCount, humanize.Time(p.CreatedAt))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <playlist>",
			Short: "List the tracks of a playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					p, err := a.lists.Get(ctx, args[0])
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistLoad, args[0], err)
					}
					tracks, err := a.lists.Tracks(ctx, p.ID)
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistLoad, p.Title, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%d tracks)\n", p.Title, len(tracks))
					writeTracks(cmd.OutOrStdout(), tracks, true)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <playlist> <track>...",
			Short: "Append tracks to a playlist",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					p, err := a.lists.Get(ctx, args[0])
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistAddTrack, args[0], err)
					}
					ids := make([]string, 0, len(args)-1)
					for _, arg := range args[1:] {
						t, err := resolveTrack(ctx, a.lib, arg)
						if err != nil {
							return errmsg.WrapWith(errmsg.OpPlaylistAddTrack, p.Title, err)
						}
						ids = append(ids, t.ID)
					}
					added, err := a.lists.AddTracks(ctx, p.ID, ids)
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistAddTrack, p.Title, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Added %d tracks to %s\n", added, p.Title)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <playlist> <track>",
			Short: "Remove a track from a playlist",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					p, err := a.lists.Get(ctx, args[0])
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistRemove, args[0], err)
					}
					t, err := resolveTrack(ctx, a.lib, args[1])
					if err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistRemove, p.Title, err)
					}
					if err := a.lists.RemoveTrack(ctx, p.ID, t.ID); err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistRemove, p.Title, err)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename <playlist> <title>...",
			Short: "Rename a playlist",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					if err := a.lists.Rename(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistRename, args[0], err)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <playlist>",
			Short: "Delete a playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					if err := a.lists.Delete(ctx, args[0]); err != nil {
						return errmsg.WrapWith(errmsg.OpPlaylistDelete, args[0], err)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
