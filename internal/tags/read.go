package tags

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// picture is embedded artwork found while parsing.
type picture struct {
	data     []byte
	mimeType string
}

// parsed holds what a single parser could read.
type parsed struct {
	title   string
	artist  string
	album   string
	track   int
	picture *picture
	// duration is set only when the tag block itself records it.
	duration time.Duration
}

func (p *parsed) empty() bool {
	return p.title == "" && p.artist == "" && p.album == ""
}

// parser reads the in-memory tag block, or the file at path when the
// library cannot work from a reader.
type parser func(path string, r *bytes.Reader) (*parsed, error)

// parserChains lists parsers per MIME type in the order they are tried.
var parserChains = map[string][]parser{
	MIMEMPEG: {parseGeneric, parseID3},
	MIMEFLAC: {parseGeneric, parseFLAC},
	MIMEMP4:  {parseGeneric, parseMP4},
	MIMEAAC:  {parseGeneric, parseTaglib},
	MIMEOGG:  {parseGeneric, parseTaglib},
	MIMEOpus: {parseGeneric, parseTaglib},
}

var defaultChain = []parser{parseGeneric, parseTaglib}

// Extractor reads metadata and caches artwork images in a directory.
type Extractor struct {
	artworkDir string
	maxArtwork int
	log        *zap.Logger
	group      singleflight.Group
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger used for per-file failures.
func WithLogger(log *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.log = log }
}

// WithMaxArtworkSize downscales cached artwork whose longest edge exceeds px.
// Zero keeps images as embedded.
func WithMaxArtworkSize(px int) ExtractorOption {
	return func(e *Extractor) { e.maxArtwork = px }
}

// NewExtractor creates an extractor that writes artwork into artworkDir.
func NewExtractor(artworkDir string, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		artworkDir: artworkDir,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the metadata of the file at path. fileName is used for the
// title fallback. It never fails: unreadable files yield the filename title
// with unknown artist and album.
//
// cache may be nil; when set, artwork resolved for an album is reused for
// the following tracks of that album.
func (e *Extractor) Extract(path, fileName string, cache *ArtworkCache) Metadata {
	md, pic, err := e.read(path, fileName)
	if err != nil {
		e.log.Warn("metadata extraction failed", zap.String("path", path), zap.Error(err))
		md = fallback(fileName)
	}
	md.Artwork = e.resolveArtwork(path, md, pic, cache)
	return md
}

func (e *Extractor) read(path, fileName string) (Metadata, *picture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Metadata{}, nil, err
	}

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Metadata{}, nil, err
	}
	header = header[:n]

	length := readLength(f, header, fi.Size())
	buf := make([]byte, length)
	read, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return Metadata{}, nil, err
	}
	buf = buf[:read]

	mime := MIMEType(path)
	p := runChain(path, mime, buf)

	md := fallback(fileName)
	if p != nil {
		if p.title != "" {
			md.Title = p.title
		}
		if p.artist != "" {
			md.Artist = p.artist
		}
		if p.album != "" {
			md.Album = p.album
		}
		md.TrackNumber = p.track
	}
	md.Duration = e.duration(path, mime, buf, p)

	var pic *picture
	if p != nil {
		pic = p.picture
	}
	return md, pic, nil
}

// runChain tries each parser for mime in order. The first result with any
// field set wins; otherwise the first that parsed at all.
func runChain(path, mime string, buf []byte) *parsed {
	chain, ok := parserChains[mime]
	if !ok {
		chain = defaultChain
	}

	var first *parsed
	for _, parse := range chain {
		p, err := parse(path, bytes.NewReader(buf))
		if err != nil || p == nil {
			continue
		}
		if !p.empty() {
			if p.picture == nil && first != nil {
				p.picture = first.picture
			}
			return p
		}
		if first == nil {
			first = p
		}
	}
	return first
}

// parseGeneric reads any format dhowden/tag understands from the buffer.
func parseGeneric(_ string, r *bytes.Reader) (*parsed, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return nil, err
	}

	track, _ := m.Track()
	p := &parsed{
		title:  strings.TrimSpace(m.Title()),
		artist: strings.TrimSpace(m.Artist()),
		album:  strings.TrimSpace(m.Album()),
		track:  max(track, 0),
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		p.picture = &picture{data: pic.Data, mimeType: pic.MIMEType}
	}
	return p, nil
}
