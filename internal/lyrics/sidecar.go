package lyrics

import (
	"os"
	"path/filepath"
	"strings"
)

// maxSidecarSize bounds how much of a .lrc file is loaded.
const maxSidecarSize = 1 << 20

// SidecarPath returns the .lrc path next to an audio file.
func SidecarPath(audioPath string) string {
	ext := filepath.Ext(audioPath)
	return strings.TrimSuffix(audioPath, ext) + ".lrc"
}

// ReadSidecar returns the contents of the .lrc file next to audioPath.
// A missing, empty or oversized file yields "".
func ReadSidecar(audioPath string) string {
	path := SidecarPath(audioPath)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() || fi.Size() > maxSidecarSize {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
