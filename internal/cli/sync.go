package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/library"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the import folder and update the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				_, err := runSync(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), !quiet)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// runSync runs one sync and prints a summary line. A sync already in
// progress elsewhere in the process is reported, not treated as failure.
func runSync(ctx context.Context, a *app, out, progress io.Writer, showBar bool) (*library.SyncStats, error) {
	if err := library.EnsureImportDir(a.cfg.Storage.ImportPath()); err != nil {
		return nil, errmsg.Wrap(errmsg.OpLibrarySync, err)
	}

	start := time.Now()
	bar := newSyncBar(progress, showBar)
	var stats *library.SyncStats
	tracks, err := a.syncer.Sync(ctx, func(p library.ScanProgress) {
		bar.update(p)
		if p.Stats != nil {
			stats = p.Stats
		}
	})
	bar.finish()
	if err != nil {
		return nil, errmsg.Wrap(errmsg.OpLibrarySync, err)
	}
	if stats == nil {
		fmt.Fprintln(out, "A sync is already running.")
		return nil, nil //nolint:nilnil // busy is not an error
	}

	fmt.Fprintf(out, "%s tracks (%d added, %d removed, %d unchanged, %d failed, %d duplicates) in %s\n",
		humanize.Comma(int64(len(tracks))),
		stats.Added, stats.Removed, stats.Unchanged, stats.Failed, stats.Duplicates,
		time.Since(start).Round(time.Millisecond),
	)
	return stats, nil
}

// syncBar renders sync progress. Phases without a known total show as a
// spinner.
type syncBar struct {
	bar   *progressbar.ProgressBar
	phase string
}

func newSyncBar(w io.Writer, visible bool) *syncBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription("discovering"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
	return &syncBar{bar: bar}
}

func (b *syncBar) update(p library.ScanProgress) {
	if p.Phase != b.phase {
		b.phase = p.Phase
		b.bar.Describe(p.Phase)
		limit := p.Total
		if limit <= 0 {
			limit = -1
		}
		b.bar.ChangeMax(limit)
	}
	if p.Total > 0 {
		_ = b.bar.Set(p.Current)
	}
}

func (b *syncBar) finish() {
	_ = b.bar.Finish()
}
