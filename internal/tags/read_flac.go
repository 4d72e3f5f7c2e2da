package tags

import (
	"bytes"
	"errors"
	"time"

	goflac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
)

// parseFLAC reads Vorbis comments and the front cover from FLAC metadata
// blocks in the buffer.
func parseFLAC(_ string, r *bytes.Reader) (*parsed, error) {
	f, err := goflac.ParseMetadata(r)
	if err != nil {
		return nil, err
	}

	p := &parsed{}
	for _, meta := range f.Meta {
		switch meta.Type {
		case goflac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				continue
			}
			p.title = firstComment(cmts, flacvorbis.FIELD_TITLE)
			p.artist = firstComment(cmts, flacvorbis.FIELD_ARTIST)
			p.album = firstComment(cmts, flacvorbis.FIELD_ALBUM)
			p.track = parseNumber(firstComment(cmts, flacvorbis.FIELD_TRACKNUMBER))
		case goflac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
			if err != nil || len(pic.ImageData) == 0 {
				continue
			}
			if p.picture == nil || pic.PictureType == flacpicture.PictureTypeFrontCover {
				p.picture = &picture{data: pic.ImageData, mimeType: pic.MIME}
			}
		case goflac.StreamInfo:
			if d, err := streamInfoDuration(meta.Data); err == nil {
				p.duration = d
			}
		}
	}
	return p, nil
}

func firstComment(cmts *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmts.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

// flacDurationFromBuffer reads STREAMINFO from the metadata in buf.
func flacDurationFromBuffer(buf []byte) time.Duration {
	f, err := goflac.ParseMetadata(bytes.NewReader(buf))
	if err != nil {
		return 0
	}
	for _, meta := range f.Meta {
		if meta.Type != goflac.StreamInfo {
			continue
		}
		if d, err := streamInfoDuration(meta.Data); err == nil {
			return d
		}
	}
	return 0
}

// streamInfoDuration decodes total samples / sample rate from a STREAMINFO
// block body.
func streamInfoDuration(data []byte) (time.Duration, error) {
	if len(data) < 18 {
		return 0, errors.New("flac: short streaminfo")
	}
	// Sample rate is the top 20 bits of bytes 10-12.
	sampleRate := int64(data[10])<<12 | int64(data[11])<<4 | int64(data[12])>>4
	// Total samples is 36 bits: low nibble of byte 13 and bytes 14-17.
	totalSamples := int64(data[13]&0x0F)<<32 | int64(data[14])<<24 | int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])
	if sampleRate == 0 || totalSamples == 0 {
		return 0, errors.New("flac: unknown length")
	}
	return time.Duration(float64(totalSamples) / float64(sampleRate) * float64(time.Second)), nil
}
