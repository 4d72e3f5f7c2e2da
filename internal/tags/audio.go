package tags

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/llehouerou/go-m4a"
	"github.com/llehouerou/go-mp3"
	"go.uber.org/zap"
)

// oggTailSize is how much of the end of an Ogg file is scanned for the
// last page.
const oggTailSize = 64 << 10

// opusSampleRate is the fixed granule rate of Opus streams.
const opusSampleRate = 48000

// duration returns the track length, preferring values already present in
// the tag block and falling back to a format-specific probe of the file.
func (e *Extractor) duration(path, mime string, buf []byte, p *parsed) time.Duration {
	if p != nil && p.duration > 0 {
		return p.duration
	}

	var (
		d   time.Duration
		err error
	)
	switch mime {
	case MIMEMPEG:
		if d = id3LengthFromBuffer(buf); d > 0 {
			return d
		}
		d, err = mp3Duration(path)
	case MIMEFLAC:
		if d = flacDurationFromBuffer(buf); d > 0 {
			return d
		}
		d, err = taglibDuration(path)
	case MIMEMP4:
		d, err = m4aDuration(path)
	case MIMEOGG, MIMEOpus:
		d, err = oggDuration(path, buf)
	default:
		d, err = taglibDuration(path)
	}
	if err != nil {
		e.log.Debug("duration probe failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	return d
}

// mp3Duration counts decoded samples with go-mp3.
func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, err
	}

	sampleRate := decoder.SampleRate()
	if sampleRate == 0 {
		return 0, errors.New("mp3: invalid sample rate")
	}
	sampleCount := max(decoder.SampleCount(), 0)

	return time.Duration(float64(sampleCount) / float64(sampleRate) * float64(time.Second)), nil
}

// m4aDuration reads the movie header duration.
func m4aDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	container, err := m4a.Open(f)
	if err != nil {
		return 0, err
	}
	return container.Duration(), nil
}

// oggDuration divides the granule position of the last page by the stream
// sample rate (found in the identification header at the start of buf).
func oggDuration(path string, buf []byte) (time.Duration, error) {
	rate := oggSampleRate(buf)
	if rate == 0 {
		return 0, errors.New("ogg: unknown codec")
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	searchSize := min(int64(oggTailSize), fi.Size())
	tail := make([]byte, searchSize)
	n, err := f.ReadAt(tail, fi.Size()-searchSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	tail = tail[:n]

	granule := lastGranule(tail)
	if granule <= 0 {
		return 0, errors.New("could not determine OGG duration")
	}
	return time.Duration(float64(granule) / float64(rate) * float64(time.Second)), nil
}

// oggSampleRate returns the granule rate declared by the first stream header.
func oggSampleRate(buf []byte) int64 {
	if bytes.Contains(buf, []byte("OpusHead")) {
		return opusSampleRate
	}
	// Vorbis identification header: 0x01 "vorbis" version(4) channels(1) rate(4)
	if i := bytes.Index(buf, []byte("\x01vorbis")); i >= 0 && i+16 <= len(buf) {
		return int64(binary.LittleEndian.Uint32(buf[i+12 : i+16]))
	}
	return 0
}

// lastGranule scans backwards for the last OggS page header.
func lastGranule(buf []byte) int64 {
	for i := len(buf) - 27; i >= 0; i-- {
		if string(buf[i:i+4]) != "OggS" {
			continue
		}
		// Granule position is at offset 6, 8 bytes little-endian.
		return int64(binary.LittleEndian.Uint64(buf[i+6 : i+14])) //nolint:gosec // granule fits in int64
	}
	return 0
}
