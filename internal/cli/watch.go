package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync whenever files in the import folder change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if debounce <= 0 {
					debounce = a.cfg.Sync.WatchDebounce()
				}
				out := cmd.OutOrStdout()
				if _, err := runSync(ctx, a, out, cmd.ErrOrStderr(), false); err != nil {
					return err
				}
				dir := a.cfg.Storage.ImportPath()
				fmt.Fprintf(out, "Watching %s\n", dir)

				err := watchDir(ctx, dir, debounce, a.log.Named("watch"), func(ctx context.Context) {
					if _, err := runSync(ctx, a, out, cmd.ErrOrStderr(), false); err != nil && !errors.Is(err, context.Canceled) {
						fmt.Fprintln(cmd.ErrOrStderr(), err)
					}
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return errmsg.Wrap(errmsg.OpWatch, err)
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before resyncing (default from config)")
	return cmd
}

// watchDir watches dir and its subdirectories and calls onChange once
// events have stopped for the debounce period. It returns when ctx ends.
func watchDir(ctx context.Context, dir string, debounce time.Duration, log *zap.Logger, onChange func(context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, dir, log); err != nil {
		return err
	}

	changes := make(chan string, 64)
	go func() {
		defer close(changes)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					// New directories need their own watch.
					_ = addTree(w, ev.Name, log)
				}
				if !relevant(ev) {
					continue
				}
				select {
				case changes <- ev.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	debounceLoop(ctx, changes, debounce, onChange)
	return ctx.Err()
}

// addTree adds root and every directory below it. Hidden directories are
// skipped, matching discovery.
func addTree(w *fsnotify.Watcher, root string, log *zap.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			log.Warn("watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// relevant reports whether ev can change the library: audio files, lyric
// sidecars and directories. Chmod-only events are ignored.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	if ext == "" {
		return true
	}
	return tags.IsMusicFile(base) || strings.EqualFold(ext, ".lrc")
}

// debounceLoop calls fire after quiet has passed without a new value on
// changes. Values arriving while fire runs start a new period afterwards.
func debounceLoop(ctx context.Context, changes <-chan string, quiet time.Duration, fire func(context.Context)) {
	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
			pending = true
			timer.Reset(quiet)
		case <-timer.C:
			if pending {
				pending = false
				fire(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}
