// Package lyrics parses LRC lyric files stored alongside tracks.
package lyrics

import (
	"bufio"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Line represents a single lyric line. Time is zero for unsynced lyrics.
type Line struct {
	Time time.Duration
	Text string
}

// Lyrics contains parsed lyrics with optional metadata.
type Lyrics struct {
	Lines  []Line
	Synced bool
	Title  string
	Artist string
	Album  string
	Offset time.Duration // [offset:] tag, applied to every timestamp
}

// LineAt returns the index of the lyric line at the given playback position.
// Returns -1 if no line is active yet or if lyrics are unsynced.
func (l *Lyrics) LineAt(pos time.Duration) int {
	if l == nil || !l.Synced {
		return -1
	}
	// First line starting after pos, minus one.
	return sort.Search(len(l.Lines), func(i int) bool {
		return l.Lines[i].Time > pos
	}) - 1
}

// Regular expressions for parsing LRC format
var (
	// Matches timestamps like [00:12.34] or [00:12:34] or [00:12]
	timestampRe = regexp.MustCompile(`\[(\d+):(\d+)(?:[.:](\d+))?\]`)

	// Matches metadata tags like [ar:Artist Name]
	metadataRe = regexp.MustCompile(`^\[([a-z]+):(.*)\]$`)
)

// Parse parses raw lyric text. Text without any timestamp is returned as
// unsynced lines in file order. It returns nil for blank input.
func Parse(raw string) *Lyrics {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	lyrics := &Lyrics{}
	var plain []Line
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if meta := metadataRe.FindStringSubmatch(line); meta != nil && !timestampRe.MatchString(line) {
			value := strings.TrimSpace(meta[2])
			switch strings.ToLower(meta[1]) {
			case "ar":
				lyrics.Artist = value
			case "ti":
				lyrics.Title = value
			case "al":
				lyrics.Album = value
			case "offset":
				if ms, err := strconv.Atoi(value); err == nil {
					lyrics.Offset = time.Duration(ms) * time.Millisecond
				}
			}
			continue
		}

		// LRC can have multiple timestamps for the same text: [00:12.34][00:45.67]Text
		matches := timestampRe.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			plain = append(plain, Line{Text: line})
			continue
		}

		text := strings.TrimSpace(line[matches[len(matches)-1][1]:])
		for _, match := range matches {
			ts, ok := parseTimestamp(line[match[0]:match[1]])
			if !ok {
				continue
			}
			lyrics.Lines = append(lyrics.Lines, Line{Time: ts, Text: text})
		}
	}

	if len(lyrics.Lines) == 0 {
		lyrics.Lines = plain
		return lyrics
	}

	lyrics.Synced = true
	// A positive offset shows lyrics earlier.
	for i := range lyrics.Lines {
		lyrics.Lines[i].Time = max(lyrics.Lines[i].Time-lyrics.Offset, 0)
	}
	sort.SliceStable(lyrics.Lines, func(i, j int) bool {
		return lyrics.Lines[i].Time < lyrics.Lines[j].Time
	})
	return lyrics
}

// parseTimestamp parses a timestamp like [00:12.34] into a Duration.
func parseTimestamp(s string) (time.Duration, bool) {
	matches := timestampRe.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}

	minutes, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(matches[2])
	if err != nil {
		return 0, false
	}

	var millis int
	if frac := matches[3]; frac != "" {
		millis, err = strconv.Atoi(frac)
		if err != nil {
			return 0, false
		}
		// .x tenths, .xx centiseconds, .xxx milliseconds
		switch len(frac) {
		case 1:
			millis *= 100
		case 2:
			millis *= 10
		}
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, true
}
