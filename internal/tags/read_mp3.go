package tags

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
)

// parseID3 reads ID3v2 frames with bogem/id3v2. dhowden/tag has issues with
// some UTF-16 encoded frames.
func parseID3(_ string, r *bytes.Reader) (*parsed, error) {
	id3tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}

	p := &parsed{
		title:    strings.TrimSpace(id3tag.Title()),
		artist:   strings.TrimSpace(id3tag.Artist()),
		album:    strings.TrimSpace(id3tag.Album()),
		track:    parseNumber(getID3TextFrame(id3tag, "TRCK")),
		duration: id3Length(id3tag),
	}

	for _, f := range id3tag.GetFrames("APIC") {
		pf, ok := f.(id3v2.PictureFrame)
		if !ok || len(pf.Picture) == 0 {
			continue
		}
		p.picture = &picture{data: pf.Picture, mimeType: pf.MimeType}
		if pf.PictureType == id3v2.PTFrontCover {
			break
		}
	}

	return p, nil
}

// id3LengthFromBuffer returns the TLEN duration of the ID3 tag in buf.
func id3LengthFromBuffer(buf []byte) time.Duration {
	id3tag, err := id3v2.ParseReader(bytes.NewReader(buf), id3v2.Options{Parse: true})
	if err != nil {
		return 0
	}
	return id3Length(id3tag)
}

// id3Length reads the TLEN frame (milliseconds).
func id3Length(id3tag *id3v2.Tag) time.Duration {
	ms, err := strconv.ParseInt(getID3TextFrame(id3tag, "TLEN"), 10, 64)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// getID3TextFrame returns the text of a text frame, or empty string.
func getID3TextFrame(id3tag *id3v2.Tag, id string) string {
	return strings.TrimSpace(id3tag.GetTextFrame(id).Text)
}
