package tags

import (
	"bytes"
	"strings"

	"github.com/Sorrow446/go-mp4tag"
)

// parseMP4 reads iTunes atoms with go-mp4tag. It works on the file rather
// than the buffer because the moov atom may sit after the media data.
func parseMP4(path string, _ *bytes.Reader) (*parsed, error) {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return nil, err
	}
	defer mp4.Close()

	t, err := mp4.Read()
	if err != nil {
		return nil, err
	}

	p := &parsed{
		title:  strings.TrimSpace(t.Title),
		artist: strings.TrimSpace(t.Artist),
		album:  strings.TrimSpace(t.Album),
		track:  max(int(t.TrackNumber), 0),
	}
	for _, pic := range t.Pictures {
		if pic == nil || len(pic.Data) == 0 {
			continue
		}
		p.picture = &picture{data: pic.Data, mimeType: imageMIME(pic.Data)}
		break
	}
	return p, nil
}
