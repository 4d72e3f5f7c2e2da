package tags

import (
	"bytes"
	"time"

	"go.senan.xyz/taglib"
)

// parseTaglib is the last resort for formats without a dedicated parser
// (Ogg, AIFF, WMA, ...). TagLib reads the file itself.
func parseTaglib(path string, _ *bytes.Reader) (*parsed, error) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, err
	}
	tags := taglibTags(rawTags)

	p := &parsed{
		title:  tags.get(taglib.Title),
		artist: tags.get(taglib.Artist, taglib.AlbumArtist),
		album:  tags.get(taglib.Album),
		track:  parseNumber(tags.get(taglib.TrackNumber)),
	}

	if img, err := taglib.ReadImage(path); err == nil && len(img) > 0 {
		p.picture = &picture{data: img, mimeType: imageMIME(img)}
	}
	return p, nil
}

// taglibDuration reads the stream length through TagLib.
func taglibDuration(path string) (time.Duration, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return 0, err
	}
	return props.Length, nil
}
