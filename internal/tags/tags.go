// Package tags extracts embedded metadata, artwork and duration from music
// files. It reads only the leading part of each file that holds the tag
// block for its container format.
package tags

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File extensions recognized as music files.
const (
	ExtMP3  = ".mp3"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtAAC  = ".aac"
	ExtFLAC = ".flac"
	ExtWAV  = ".wav"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtOPUS = ".opus"
	ExtAIF  = ".aif"
	ExtAIFF = ".aiff"
	ExtCAF  = ".caf"
	ExtWMA  = ".wma"
)

// MIME types used to pick a parser chain.
const (
	MIMEMPEG = "audio/mpeg"
	MIMEMP4  = "audio/mp4"
	MIMEAAC  = "audio/aac"
	MIMEFLAC = "audio/flac"
	MIMEWAV  = "audio/wav"
	MIMEOGG  = "audio/ogg"
	MIMEOpus = "audio/opus"
	MIMEAIFF = "audio/aiff"
	MIMECAF  = "audio/x-caf"
	MIMEWMA  = "audio/x-ms-wma"
)

var mimeByExt = map[string]string{
	ExtMP3:  MIMEMPEG,
	ExtM4A:  MIMEMP4,
	ExtMP4:  MIMEMP4,
	ExtAAC:  MIMEAAC,
	ExtFLAC: MIMEFLAC,
	ExtWAV:  MIMEWAV,
	ExtOGG:  MIMEOGG,
	ExtOGA:  MIMEOGG,
	ExtOPUS: MIMEOpus,
	ExtAIF:  MIMEAIFF,
	ExtAIFF: MIMEAIFF,
	ExtCAF:  MIMECAF,
	ExtWMA:  MIMEWMA,
}

// Fallback values for files without usable tags.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// id3Magic is the magic bytes for ID3v2 header detection.
const id3Magic = "ID3"

// Metadata is the extraction result for one file.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration // 0 when unknown
	Artwork     string        // absolute image path, empty when none
}

// IsMusicFile returns true if the path has a supported music file extension.
func IsMusicFile(path string) bool {
	_, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MIMEType infers the audio MIME type from the file extension.
// Unknown extensions return "application/octet-stream".
func MIMEType(path string) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}

// TitleFromFileName strips the extension from a file name.
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// fallback returns the metadata used when nothing could be read.
func fallback(fileName string) Metadata {
	return Metadata{
		Title:  TitleFromFileName(fileName),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}
}

// taglibTags wraps a taglib result map with helper methods.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string if not found.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

// parseNumber parses a track number that may be "N" or "N/M".
func parseNumber(s string) int {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
