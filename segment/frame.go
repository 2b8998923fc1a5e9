package segment

import (
	"bytes"
	"encoding/binary"

	"github.com/arloliu/tsdb/errs"
)

// Frame is a view over one segment frame found within a byte slice: the
// header fields plus the absolute offsets needed to navigate to its
// neighbors (§4.1).
type Frame struct {
	Version              uint16
	FirstKey             []byte
	LastKey              []byte
	CompressedPayloadLen uint32
	PrevSize             uint32
	ThisKeyPrev          uint32

	// SegmentOffset is the absolute offset of Marker within the scanned file.
	SegmentOffset int
	// HeaderLen is the number of bytes from SegmentOffset to the first
	// payload byte (marker + version + header fields + key bytes).
	HeaderLen int
	// Payload is the compressed payload bytes, a sub-slice of the scanned buffer.
	Payload []byte
}

// Stride is the total length of the frame (header + payload) — the
// distance from this frame's SegmentOffset to the next frame's.
func (f *Frame) Stride() int {
	return f.HeaderLen + len(f.Payload)
}

// Scan locates the next segment frame at or after offset start within
// data, which is typically the full bytes of a memory-mapped transaction
// file. It transparently skips escaped marker occurrences (a literal
// Marker ++ 0xFF 0xFF sequence that happens to appear while scanning raw
// bytes is not a frame start) and returns errs.ErrMarkerNotFound if no
// frame remains, or errs.ErrTruncatedFrame if a marker is found but its
// header or payload runs past the end of data.
func Scan(data []byte, start int) (*Frame, error) {
	pos := start
	if pos < 0 {
		pos = 0
	}

	for {
		if pos >= len(data) {
			return nil, errs.ErrMarkerNotFound
		}

		idx := bytes.Index(data[pos:], Marker)
		if idx < 0 {
			return nil, errs.ErrMarkerNotFound
		}
		markerStart := pos + idx
		verOff := markerStart + len(Marker)
		if verOff+2 > len(data) {
			return nil, errs.ErrTruncatedFrame
		}

		ver := binary.BigEndian.Uint16(data[verOff : verOff+2])
		if ver == VersionEscape {
			// Literal marker embedded in payload data; not a frame start.
			pos = verOff + 2
			continue
		}

		switch ver {
		case VersionV0:
			return parseV0(data, markerStart, verOff+2)
		case VersionV1:
			return parseV1(data, markerStart, verOff+2)
		default:
			return nil, errs.ErrUnsupportedVersion
		}
	}
}

// parseV0 parses the fixed-width v0 header starting at hdrStart (the byte
// right after the version code), per §4.1.
func parseV0(data []byte, segmentOffset, hdrStart int) (*Frame, error) {
	const fixedHeaderSize = 16 // 4 x u32
	if hdrStart+fixedHeaderSize > len(data) {
		return nil, errs.ErrTruncatedFrame
	}

	firstKeyLen := binary.BigEndian.Uint32(data[hdrStart:])
	lastKeyLen := binary.BigEndian.Uint32(data[hdrStart+4:])
	compressedLen := binary.BigEndian.Uint32(data[hdrStart+8:])
	prevSize := binary.BigEndian.Uint32(data[hdrStart+12:])

	keysStart := hdrStart + fixedHeaderSize
	firstKeyEnd := keysStart + int(firstKeyLen)
	lastKeyEnd := firstKeyEnd + int(lastKeyLen)
	payloadEnd := lastKeyEnd + int(compressedLen)
	if payloadEnd > len(data) || lastKeyEnd < firstKeyEnd {
		return nil, errs.ErrTruncatedFrame
	}

	return &Frame{
		Version:              VersionV0,
		FirstKey:             data[keysStart:firstKeyEnd],
		LastKey:              data[firstKeyEnd:lastKeyEnd],
		CompressedPayloadLen: compressedLen,
		PrevSize:             prevSize,
		ThisKeyPrev:          0,
		SegmentOffset:        segmentOffset,
		HeaderLen:            lastKeyEnd - segmentOffset,
		Payload:              data[lastKeyEnd:payloadEnd],
	}, nil
}

// parseV1 parses the varint v1 header starting at hdrStart, per §4.1.
func parseV1(data []byte, segmentOffset, hdrStart int) (*Frame, error) {
	off := hdrStart

	readUvarint := func() (uint64, bool) {
		v, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return 0, false
		}
		off += n
		return v, true
	}

	firstKeyLen, ok := readUvarint()
	if !ok {
		return nil, errs.ErrTruncatedFrame
	}
	lastKeyLen, ok := readUvarint()
	if !ok {
		return nil, errs.ErrTruncatedFrame
	}
	compressedLen, ok := readUvarint()
	if !ok {
		return nil, errs.ErrTruncatedFrame
	}
	prevSize, ok := readUvarint()
	if !ok {
		return nil, errs.ErrTruncatedFrame
	}
	thisKeyPrev, ok := readUvarint()
	if !ok {
		return nil, errs.ErrTruncatedFrame
	}

	firstKeyEnd := off + int(firstKeyLen)
	lastKeyEnd := firstKeyEnd + int(lastKeyLen)
	payloadEnd := lastKeyEnd + int(compressedLen)
	if payloadEnd > len(data) || firstKeyEnd < off || lastKeyEnd < firstKeyEnd {
		return nil, errs.ErrTruncatedFrame
	}

	return &Frame{
		Version:              VersionV1,
		FirstKey:             data[off:firstKeyEnd],
		LastKey:              data[firstKeyEnd:lastKeyEnd],
		CompressedPayloadLen: uint32(compressedLen),
		PrevSize:             uint32(prevSize),
		ThisKeyPrev:          uint32(thisKeyPrev),
		SegmentOffset:        segmentOffset,
		HeaderLen:            lastKeyEnd - segmentOffset,
		Payload:              data[lastKeyEnd:payloadEnd],
	}, nil
}
