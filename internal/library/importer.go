package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/lyrics"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

const readmeName = "README.txt"

const readmeText = `Put music files in this folder to add them to your library.

Sub-folders are scanned too. Supported formats: mp3, m4a, aac, flac, wav,
ogg, opus, aiff, caf and wma. Lyrics are read from a .lrc file with the same
name as the track.
`

// EnsureImportDir creates the import directory. A README is written the
// first time the directory is created.
func EnsureImportDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create import directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, readmeName), []byte(readmeText), 0o644)
}

// ImportResult lists what an import copied into the import directory.
type ImportResult struct {
	Copied  []string
	Skipped []string
	Failed  map[string]error
}

// Import copies music files into importDir. Directory sources are copied
// recursively under a folder of the same name and recorded as added
// folders. Lyrics sidecars travel with their track. Existing names get a
// numeric suffix.
func (l *Library) Import(ctx context.Context, importDir string, sources []string) (*ImportResult, error) {
	if err := EnsureImportDir(importDir); err != nil {
		return nil, err
	}

	result := &ImportResult{Failed: make(map[string]error)}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		src = filepath.Clean(src)
		fi, err := os.Stat(src)
		if err != nil {
			result.Failed[src] = err
			continue
		}

		if !fi.IsDir() {
			l.importFile(src, importDir, result)
			continue
		}

		destRoot := uniquePath(filepath.Join(importDir, filepath.Base(src)))
		_ = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil //nolint:nilerr // skip unreadable entries
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return nil //nolint:nilerr // unreachable for walked paths
			}
			l.importFile(path, filepath.Join(destRoot, filepath.Dir(rel)), result)
			return nil
		})
		if err := l.AddFolder(ctx, src); err != nil {
			l.log.Warn("record added folder", zap.String("path", src), zap.Error(err))
		}
	}
	return result, nil
}

func (l *Library) importFile(src, destDir string, result *ImportResult) {
	if !tags.IsMusicFile(src) {
		result.Skipped = append(result.Skipped, src)
		return
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		result.Failed[src] = err
		return
	}

	dst := uniquePath(filepath.Join(destDir, filepath.Base(src)))
	if err := copyFile(src, dst); err != nil {
		result.Failed[src] = err
		return
	}
	result.Copied = append(result.Copied, dst)

	sidecar := lyrics.SidecarPath(src)
	if _, err := os.Stat(sidecar); err == nil {
		if err := copyFile(sidecar, lyrics.SidecarPath(dst)); err != nil {
			l.log.Warn("copy lyrics sidecar", zap.String("path", sidecar), zap.Error(err))
		}
	}
}

// uniquePath returns path, or "name (n).ext" for the first n that does not
// exist yet.
func uniquePath(path string) string {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return err
	}

	return dstFile.Close()
}

// Import copies sources into the syncer's import directory.
func (s *Syncer) Import(ctx context.Context, sources []string) (*ImportResult, error) {
	return s.lib.Import(ctx, s.importDir, sources)
}
