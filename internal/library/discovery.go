package library

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/llehouerou/pocketwaves/internal/tags"
)

// Discover returns the music files under root, recursively, in lexical
// order. Unreadable entries are skipped. A missing root yields nothing.
func Discover(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "._") {
			return nil
		}
		if tags.IsMusicFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// isLocalFile reports whether uri names a file on the local filesystem
// rather than an opaque media-index asset.
func isLocalFile(uri string) bool {
	return filepath.IsAbs(uri)
}
