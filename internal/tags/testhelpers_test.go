package tags

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
)

// mp3Fields are the ID3 frames written into test files.
type mp3Fields struct {
	Title, Artist, Album, Track, Length string
	Picture                             []byte
}

// createTestMP3 creates a minimal MP3 file with optional tags.
func createTestMP3(t *testing.T, dir, name string, fields *mp3Fields) string {
	t.Helper()
	path := filepath.Join(dir, name)

	// Minimal MP3 frame (MPEG1 Layer3, 128kbps, 44100Hz, stereo)
	mp3Frame := make([]byte, 417)
	mp3Frame[0] = 0xff
	mp3Frame[1] = 0xfb
	mp3Frame[2] = 0x90
	mp3Frame[3] = 0x00

	if err := os.WriteFile(path, mp3Frame, 0o600); err != nil {
		t.Fatalf("failed to create test MP3: %v", err)
	}
	if fields == nil {
		return path
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		t.Fatalf("open id3: %v", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(fields.Title)
	tag.SetArtist(fields.Artist)
	tag.SetAlbum(fields.Album)
	if fields.Track != "" {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fields.Track)
	}
	if fields.Length != "" {
		tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, fields.Length)
	}
	if fields.Picture != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/png",
			PictureType: id3v2.PTFrontCover,
			Description: "Front",
			Picture:     fields.Picture,
		})
	}
	if err := tag.Save(); err != nil {
		t.Fatalf("save id3: %v", err)
	}
	return path
}

// testPNG encodes a solid w x h image.
func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// streamInfo builds a STREAMINFO block body.
func streamInfo(sampleRate, totalSamples int64) []byte {
	data := make([]byte, 34)
	binary.BigEndian.PutUint16(data[0:2], 4096)
	binary.BigEndian.PutUint16(data[2:4], 4096)
	// sample rate (20 bits) | channels-1 (3 bits) | bps-1 (5 bits) | total samples (36 bits)
	packed := uint64(sampleRate)<<44 | uint64(1)<<41 | uint64(15)<<36 | uint64(totalSamples)
	binary.BigEndian.PutUint64(data[10:18], packed)
	return data
}

// flacBlock frames a metadata block body with its header.
func flacBlock(blockType byte, last bool, body []byte) []byte {
	hdr := []byte{blockType, byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body))}
	if last {
		hdr[0] |= 0x80
	}
	return append(hdr, body...)
}

// createTestFLAC writes a FLAC file with STREAMINFO and Vorbis comments
// followed by padding bytes standing in for audio frames.
func createTestFLAC(t *testing.T, dir, name string, comments map[string]string) string {
	t.Helper()

	cmt := flacvorbis.New()
	for k, v := range comments {
		if err := cmt.Add(k, v); err != nil {
			t.Fatalf("add comment: %v", err)
		}
	}
	cmtBlock := cmt.Marshal()

	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.Write(flacBlock(0, false, streamInfo(44100, 441000)))
	buf.Write(flacBlock(4, true, cmtBlock.Data))
	buf.Write(make([]byte, 1024))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write flac: %v", err)
	}
	return path
}
