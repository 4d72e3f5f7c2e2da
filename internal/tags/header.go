package tags

import (
	"encoding/binary"
	"errors"
	"io"
)

// Read sizes.
const (
	headerSize      = 16
	maxTagRead      = 10 << 20 // upper bound for any tag block
	mp4FallbackRead = 2 << 20  // moov not directly after ftyp
	defaultRead     = 512 << 10
)

// container identifies the format from the first bytes of a file.
type container int

const (
	containerUnknown container = iota
	containerID3
	containerMP4
	containerFLAC
	containerOgg
)

func (c container) String() string {
	switch c {
	case containerID3:
		return "id3v2"
	case containerMP4:
		return "mp4"
	case containerFLAC:
		return "flac"
	case containerOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// sniff identifies the container from up to headerSize leading bytes.
func sniff(header []byte) container {
	switch {
	case len(header) >= 10 && string(header[:3]) == id3Magic:
		return containerID3
	case len(header) >= 8 && string(header[4:8]) == "ftyp":
		return containerMP4
	case len(header) >= 4 && string(header[:4]) == "fLaC":
		return containerFLAC
	case len(header) >= 4 && string(header[:4]) == "OggS":
		return containerOgg
	default:
		return containerUnknown
	}
}

// synchsafe decodes a 28-bit ID3v2 synchsafe integer.
func synchsafe(b []byte) int64 {
	return int64(b[0]&0x7f)<<21 | int64(b[1]&0x7f)<<14 | int64(b[2]&0x7f)<<7 | int64(b[3]&0x7f)
}

// readLength returns how many leading bytes of the file to read so that the
// whole tag block is included. The result never exceeds size.
func readLength(r io.ReaderAt, header []byte, size int64) int64 {
	var n int64
	switch sniff(header) {
	case containerID3:
		n = synchsafe(header[6:10]) + 10
		if header[5]&0x10 != 0 {
			n += 10 // footer
		}
		n = min(n, maxTagRead)
	case containerMP4:
		n = mp4ReadLength(r, header)
	case containerFLAC:
		n = flacReadLength(r)
	default:
		n = defaultRead
	}
	if n <= 0 || n > size {
		n = size
	}
	return n
}

// mp4ReadLength covers ftyp and, when it directly follows, moov.
func mp4ReadLength(r io.ReaderAt, header []byte) int64 {
	ftypSize := int64(binary.BigEndian.Uint32(header[0:4]))
	if ftypSize < 8 {
		return mp4FallbackRead
	}

	size, name, err := atomHeaderAt(r, ftypSize)
	if err != nil || name != "moov" {
		return mp4FallbackRead
	}
	return min(ftypSize+size, maxTagRead)
}

// atomHeaderAt reads the size and type of the atom at off.
func atomHeaderAt(r io.ReaderAt, off int64) (int64, string, error) {
	var buf [16]byte
	if _, err := r.ReadAt(buf[:8], off); err != nil {
		return 0, "", err
	}
	size := int64(binary.BigEndian.Uint32(buf[0:4]))
	name := string(buf[4:8])
	if size == 1 {
		// 64-bit extended size follows the type.
		if _, err := r.ReadAt(buf[8:16], off+8); err != nil {
			return 0, "", err
		}
		size = int64(binary.BigEndian.Uint64(buf[8:16])) //nolint:gosec // atom sizes fit in int64
	}
	if size < 8 {
		return 0, "", errors.New("mp4: invalid atom size")
	}
	return size, name, nil
}

// flacReadLength walks the metadata block headers up to the last block.
func flacReadLength(r io.ReaderAt) int64 {
	off := int64(4) // "fLaC"
	var hdr [4]byte
	for off < maxTagRead {
		if _, err := r.ReadAt(hdr[:], off); err != nil {
			return off
		}
		last := hdr[0]&0x80 != 0
		length := int64(hdr[1])<<16 | int64(hdr[2])<<8 | int64(hdr[3])
		off += 4 + length
		if last {
			return min(off, maxTagRead)
		}
	}
	return maxTagRead
}
