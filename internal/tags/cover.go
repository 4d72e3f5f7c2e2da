package tags

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// Sibling image names probed when a file has no embedded artwork.
var coverArtNames = []string{"cover", "folder", "front", "artwork"}

var coverArtExts = []string{".jpg", ".jpeg", ".png"}

const maxArtworkNameLen = 120

// ArtworkCache remembers the artwork resolved for each album during a sync
// batch, so one album's tracks share one image file. Safe for concurrent use.
type ArtworkCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewArtworkCache creates an empty cache.
func NewArtworkCache() *ArtworkCache {
	return &ArtworkCache{entries: make(map[string]string)}
}

// Get returns the artwork recorded for key.
func (c *ArtworkCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put records the artwork for key.
func (c *ArtworkCache) Put(key, artwork string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = artwork
}

// Len returns the number of albums recorded.
func (c *ArtworkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// AlbumKey is the cache key for an album.
func AlbumKey(album, artist string) string {
	return album + "\x00" + artist
}

// resolveArtwork applies the artwork priority: album cache, embedded
// picture, sibling cover file. Tracks without a real album tag never share
// artwork through the cache.
func (e *Extractor) resolveArtwork(path string, md Metadata, pic *picture, cache *ArtworkCache) string {
	key := AlbumKey(md.Album, md.Artist)
	name := ArtworkFileName(md.Album, md.Artist)
	if md.Album == UnknownAlbum {
		key = path
		name = ArtworkFileName(md.Title, md.Artist)
	}
	shareable := cache != nil && md.Album != UnknownAlbum

	if shareable {
		if art, ok := cache.Get(key); ok {
			return art
		}
	}

	var art string
	if pic != nil {
		v, err, _ := e.group.Do(key, func() (any, error) {
			if shareable {
				if art, ok := cache.Get(key); ok {
					return art, nil
				}
			}
			return e.writeArtwork(name, pic)
		})
		if err != nil {
			e.log.Warn("write artwork failed", zap.String("path", path), zap.Error(err))
		} else {
			art, _ = v.(string)
		}
	}

	if art == "" {
		art = findFolderArt(filepath.Dir(path))
	}

	if art != "" && shareable {
		cache.Put(key, art)
	}
	return art
}

// writeArtwork stores pic in the artwork directory as name plus the image
// extension, downscaling it when it exceeds the configured size.
func (e *Extractor) writeArtwork(name string, pic *picture) (string, error) {
	if e.artworkDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.artworkDir, 0o755); err != nil {
		return "", err
	}

	mimeType := pic.mimeType
	if mimeType == "" {
		mimeType = imageMIME(pic.data)
	}
	ext := ".jpg"
	if mimeType == "image/png" {
		ext = ".png"
	}

	data := pic.data
	if e.maxArtwork > 0 {
		if scaled, err := downscale(data, ext, e.maxArtwork); err == nil {
			data = scaled
		} else {
			e.log.Debug("artwork kept at original size", zap.Error(err))
		}
	}

	dest := filepath.Join(e.artworkDir, name+ext)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// downscale re-encodes data so its longest edge is at most maxPx.
// Images already within bounds are returned unchanged.
func downscale(data []byte, ext string, maxPx int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= maxPx && cfg.Height <= maxPx {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	resized := resize.Thumbnail(uint(maxPx), uint(maxPx), img, resize.Lanczos3) //nolint:gosec // maxPx is positive

	var out bytes.Buffer
	if ext == ".png" {
		err = png.Encode(&out, resized)
	} else {
		err = jpeg.Encode(&out, resized, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("encode artwork: %w", err)
	}
	return out.Bytes(), nil
}

// ArtworkFileName builds the cache file name (without extension) for an
// album. Different albums may collide after sanitizing; the last write wins.
func ArtworkFileName(album, artist string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range album + "_" + artist {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxArtworkNameLen {
			break
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "unknown"
	}
	return name
}

// FolderArt returns the cover image stored next to trackPath, if any.
func FolderArt(trackPath string) string {
	return findFolderArt(filepath.Dir(trackPath))
}

// findFolderArt looks for a cover image next to the audio file. Names are
// matched case-insensitively.
func findFolderArt(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files[strings.ToLower(e.Name())] = e.Name()
	}

	for _, name := range coverArtNames {
		for _, ext := range coverArtExts {
			if actual, ok := files[name+ext]; ok {
				return filepath.Join(dir, actual)
			}
		}
	}
	return ""
}

// imageMIME sniffs the image type from its magic bytes.
func imageMIME(data []byte) string {
	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return "image/png"
	}
	return "image/jpeg"
}
