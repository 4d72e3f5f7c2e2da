package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/config"
	"github.com/llehouerou/pocketwaves/internal/errmsg"
	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/logging"
	"github.com/llehouerou/pocketwaves/internal/pathcodec"
	"github.com/llehouerou/pocketwaves/internal/playlists"
	"github.com/llehouerou/pocketwaves/internal/state"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

// app holds the components every command works with.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	state  *state.Manager
	lib    *library.Library
	lists  *playlists.Playlists
	syncer *library.Syncer
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return config.LoadFiles(path)
	}
	return config.Load()
}

// openApp loads configuration, opens the database and rewrites any legacy
// track ids left by older versions.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, errmsg.Wrap(errmsg.OpConfigLoad, err)
	}
	if opts.verbose {
		cfg.Log.Console = true
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, errmsg.Wrap(errmsg.OpInitialize, fmt.Errorf("logger: %w", err))
	}

	var st *state.Manager
	if cfg.Storage.Database != "" {
		st, err = state.OpenPath(cfg.Storage.Database)
	} else {
		st, err = state.Open()
	}
	if err != nil {
		_ = log.Sync()
		return nil, errmsg.Wrap(errmsg.OpStateOpen, err)
	}

	codec := pathcodec.New(cfg.Storage.DocumentRoot, cfg.Storage.CacheRoot)
	lib := library.New(st.DB(), codec, library.WithLogger(log.Named("library")))

	if n, err := lib.MigrateLegacyIDs(ctx); err != nil {
		st.Close()
		return nil, errmsg.Wrap(errmsg.OpLibraryMigrate, err)
	} else if n > 0 {
		log.Info("migrated legacy track ids", zap.Int("count", n))
	}

	artworkDir := cfg.Storage.ArtworkPath()
	if err := os.MkdirAll(artworkDir, 0o755); err != nil {
		st.Close()
		return nil, errmsg.Wrap(errmsg.OpInitialize, err)
	}
	extractor := tags.NewExtractor(artworkDir,
		tags.WithLogger(log.Named("tags")),
		tags.WithMaxArtworkSize(cfg.Artwork.MaxSize),
	)

	syncer := library.NewSyncer(lib, extractor, cfg.Storage.ImportPath(),
		library.WithSyncLogger(log.Named("sync")),
		library.WithChunkSize(cfg.Sync.ChunkSize),
		library.WithBatchSize(cfg.Sync.BatchSize),
		library.WithYieldEvery(cfg.Sync.YieldEvery),
		library.WithProgressInterval(cfg.Sync.ProgressInterval()),
	)

	return &app{
		cfg:    cfg,
		log:    log,
		state:  st,
		lib:    lib,
		lists:  playlists.New(st.DB(), lib),
		syncer: syncer,
	}, nil
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.state.Close()
}
