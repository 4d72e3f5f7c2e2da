// Package cli implements the pocketwaves command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/notify"
	"github.com/llehouerou/pocketwaves/internal/playback"
	"github.com/llehouerou/pocketwaves/internal/player"
)

type rootOptions struct {
	configPath string
	verbose    bool

	// newBackend creates the audio output for play.
	newBackend func(a *app) playback.Backend
	// newNotifier creates the desktop notifier used by play --notify.
	newNotifier func() (notify.Notifier, error)
	// captureStderr routes native library stderr into the log during play.
	captureStderr bool
}

func defaultBackend(a *app) playback.Backend {
	return player.New(
		player.WithLogger(a.log.Named("player")),
		player.WithVolume(a.cfg.Playback.VolumeLevel()),
	)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{
		newBackend:    defaultBackend,
		newNotifier:   notify.New,
		captureStderr: true,
	})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "pocketwaves",
		Short:         "A local music library and player",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: XDG config, then ./config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newSyncCommand(opts),
		newWatchCommand(opts),
		newImportCommand(opts),
		newTracksCommand(opts),
		newSearchCommand(opts),
		newHistoryCommand(opts),
		newDedupeCommand(opts),
		newRemoveCommand(opts),
		newFoldersCommand(opts),
		newPlaylistCommand(opts),
		newPlayCommand(opts),
		newLyricsCommand(opts),
	)
	return root
}

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// resolveTrack looks a track up by id, absolute path or path relative to
// the working directory.
func resolveTrack(ctx context.Context, lib *library.Library, arg string) (*library.Track, error) {
	t, err := lib.TrackByID(ctx, arg)
	if !errors.Is(err, library.ErrTrackNotFound) {
		return t, err
	}
	if abs, absErr := filepath.Abs(arg); absErr == nil && abs != arg {
		if t, err2 := lib.TrackByID(ctx, abs); err2 == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", library.ErrTrackNotFound, arg)
}
