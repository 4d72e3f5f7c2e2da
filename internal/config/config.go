package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/pocketwaves/internal/logging"
	"github.com/llehouerou/pocketwaves/internal/lrclib"
)

const appName = "pocketwaves"

type Config struct {
	Storage  StorageConfig  `koanf:"storage"`
	Sync     SyncConfig     `koanf:"sync"`
	Playback PlaybackConfig `koanf:"playback"`
	Artwork  ArtworkConfig  `koanf:"artwork"`
	Lyrics   LyricsConfig   `koanf:"lyrics"`
	Log      logging.Config `koanf:"log"`
}

// StorageConfig locates the two roots stable ids are relative to.
type StorageConfig struct {
	DocumentRoot string `koanf:"document_root"` // user files; default XDG data dir
	CacheRoot    string `koanf:"cache_root"`    // regenerable files; default XDG cache dir
	ImportDir    string `koanf:"import_dir"`    // relative to document_root (default: "Music")
	Database     string `koanf:"database"`      // empty means the XDG data location
}

// SyncConfig tunes the library sync pipeline.
type SyncConfig struct {
	ChunkSize          int `koanf:"chunk_size"`           // files extracted concurrently (default: 10)
	BatchSize          int `koanf:"batch_size"`           // tracks per store flush (default: 30)
	YieldEvery         int `koanf:"yield_every"`          // chunks between scheduler yields (default: 5)
	ProgressIntervalMS int `koanf:"progress_interval_ms"` // minimum gap between progress reports (default: 100)
	WatchDebounceMS    int `koanf:"watch_debounce_ms"`    // quiet period before watch resyncs (default: 2000)
}

// PlaybackConfig tunes the playback engine.
type PlaybackConfig struct {
	SettleMS        int  `koanf:"settle_ms"`         // wait after loading before play (default: 150)
	RestartAfterSec int  `koanf:"restart_after_sec"` // previous restarts the track past this (default: 3)
	Volume          int  `koanf:"volume"`            // percent, 1-100 (default: 100)
	Notify          bool `koanf:"notify"`            // desktop notification per track
	NotifyTimeoutMS int  `koanf:"notify_timeout_ms"` // 0 uses the server default
	MPRIS           bool `koanf:"mpris"`             // publish the player on D-Bus
}

// LyricsConfig controls lyrics lookups.
type LyricsConfig struct {
	APIURL string `koanf:"api_url"` // lrclib-compatible API (default: https://lrclib.net/api)
}

// ArtworkConfig controls the artwork cache.
type ArtworkConfig struct {
	MaxSize int `koanf:"max_size"` // longest edge in pixels; 0 keeps originals (default: 1024)
}

// Load reads the config files in priority order (last wins) and applies defaults.
func Load() (*Config, error) {
	return LoadFiles(getConfigPaths()...)
}

// LoadFiles reads the given TOML files, skipping any that do not exist.
func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Storage
	if s.DocumentRoot == "" {
		s.DocumentRoot = filepath.Join(xdg.DataHome, appName)
	}
	if s.CacheRoot == "" {
		s.CacheRoot = filepath.Join(xdg.CacheHome, appName)
	}
	if s.ImportDir == "" {
		s.ImportDir = "Music"
	}
	s.DocumentRoot = expandPath(s.DocumentRoot)
	s.CacheRoot = expandPath(s.CacheRoot)
	s.Database = expandPath(s.Database)

	if c.Sync.ChunkSize <= 0 {
		c.Sync.ChunkSize = 10
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = 30
	}
	if c.Sync.YieldEvery <= 0 {
		c.Sync.YieldEvery = 5
	}
	if c.Sync.ProgressIntervalMS <= 0 {
		c.Sync.ProgressIntervalMS = 100
	}
	if c.Sync.WatchDebounceMS <= 0 {
		c.Sync.WatchDebounceMS = 2000
	}

	if c.Playback.SettleMS < 0 {
		c.Playback.SettleMS = 0
	} else if c.Playback.SettleMS == 0 {
		c.Playback.SettleMS = 150
	}
	if c.Playback.RestartAfterSec <= 0 {
		c.Playback.RestartAfterSec = 3
	}
	if c.Playback.Volume <= 0 || c.Playback.Volume > 100 {
		c.Playback.Volume = 100
	}

	if c.Artwork.MaxSize == 0 {
		c.Artwork.MaxSize = 1024
	}

	if c.Lyrics.APIURL == "" {
		c.Lyrics.APIURL = lrclib.DefaultBaseURL
	}

	c.Log.File = expandPath(c.Log.File)
}

// ImportPath returns the absolute directory imported files are copied into.
func (s StorageConfig) ImportPath() string {
	if filepath.IsAbs(s.ImportDir) {
		return s.ImportDir
	}
	return filepath.Join(s.DocumentRoot, s.ImportDir)
}

// ArtworkPath returns the artwork cache directory.
func (s StorageConfig) ArtworkPath() string {
	return filepath.Join(s.CacheRoot, "artwork")
}

// ProgressInterval returns the progress throttle as a duration.
func (c SyncConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}

// WatchDebounce returns how long watch waits for file events to stop.
func (c SyncConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Settle returns the post-load settle delay.
func (c PlaybackConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// RestartThreshold returns how far into a track previous restarts it.
func (c PlaybackConfig) RestartThreshold() time.Duration {
	return time.Duration(c.RestartAfterSec) * time.Second
}

// VolumeLevel returns the volume as a 0..1 level.
func (c PlaybackConfig) VolumeLevel() float64 {
	return float64(c.Volume) / 100
}

// NotifyTimeout returns how long now-playing notifications stay up.
func (c PlaybackConfig) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/pocketwaves/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

// expandPath resolves a leading ~ and makes path absolute. Empty stays empty.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
