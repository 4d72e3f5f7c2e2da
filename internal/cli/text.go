package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/llehouerou/pocketwaves/internal/library"
)

// sanitize drops control characters and invalid UTF-8 from tag text before
// it reaches the terminal. Non-breaking spaces become spaces.
func sanitize(s string) string {
	if !needsSanitize(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
		case r == '\u00a0':
			b.WriteByte(' ')
		case r == '\t' || !unicode.IsControl(r):
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func needsSanitize(s string) bool {
	for i := range len(s) {
		c := s[i]
		if c < 0x20 && c != '\t' {
			return true
		}
		if c >= 0x80 && c <= 0x9f {
			return true
		}
		if c == 0xc2 && i+1 < len(s) && s[i+1] == 0xa0 {
			return true
		}
	}
	return !utf8.ValidString(s)
}

// cell truncates s to width columns and pads it to exactly width.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(sanitize(s), width, "..."), width)
}

// formatDuration renders d as m:ss, or h:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// parseDuration accepts m:ss, h:mm:ss, plain seconds or a Go duration.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var total time.Duration
	for part := range strings.SplitSeq(s, ":") {
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil || n < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total, nil
}

const (
	titleWidth  = 36
	artistWidth = 24
	albumWidth  = 24
)

// writeTracks prints one row per track. With ids set, the track id ends
// each row so it can be passed back to other commands.
func writeTracks(w io.Writer, tracks []library.Track, ids bool) {
	for i, t := range tracks {
		line := fmt.Sprintf("%4d  %s  %s  %s  %6s",
			i+1,
			cell(t.Title, titleWidth),
			cell(t.Artist, artistWidth),
			cell(t.Album, albumWidth),
			formatDuration(t.Duration),
		)
		if ids {
			line += "  " + t.ID
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
