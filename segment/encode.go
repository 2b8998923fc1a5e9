package segment

import "encoding/binary"

// EncodeV1Header appends a complete v1 frame header (marker, version,
// varint fields, key bytes) to dst and returns the extended slice. The
// caller appends the compressed payload bytes immediately after. New
// writes always use v1 (§9: "implementations SHOULD still write v1").
func EncodeV1Header(dst []byte, firstKey, lastKey []byte, compressedPayloadLen, prevSize, thisKeyPrev uint64) []byte {
	dst = append(dst, Marker...)
	dst = appendUint16BE(dst, VersionV1)
	dst = appendUvarint(dst, uint64(len(firstKey)))
	dst = appendUvarint(dst, uint64(len(lastKey)))
	dst = appendUvarint(dst, compressedPayloadLen)
	dst = appendUvarint(dst, prevSize)
	dst = appendUvarint(dst, thisKeyPrev)
	dst = append(dst, firstKey...)
	dst = append(dst, lastKey...)
	return dst
}

// V1HeaderLen returns the number of bytes EncodeV1Header will write for
// the given key lengths and field values, without actually encoding
// anything. Used by the writer to decide when a segment has reached its
// target size before the final prevSize/compressedPayloadLen are known.
func V1HeaderLen(firstKeyLen, lastKeyLen int, compressedPayloadLen, prevSize, thisKeyPrev uint64) int {
	n := len(Marker) + 2
	n += uvarintLen(uint64(firstKeyLen))
	n += uvarintLen(uint64(lastKeyLen))
	n += uvarintLen(compressedPayloadLen)
	n += uvarintLen(prevSize)
	n += uvarintLen(thisKeyPrev)
	n += firstKeyLen + lastKeyLen
	return n
}

// EncodeV0Header appends a v0 fixed-width frame header. v0 is read-only
// legacy (§9); this exists so tests can produce v0 fixtures to exercise
// the scanner's backward-compatible path.
func EncodeV0Header(dst []byte, firstKey, lastKey []byte, compressedPayloadLen, prevSize uint32) []byte {
	dst = append(dst, Marker...)
	dst = appendUint16BE(dst, VersionV0)
	dst = appendUint32BE(dst, uint32(len(firstKey)))
	dst = appendUint32BE(dst, uint32(len(lastKey)))
	dst = appendUint32BE(dst, compressedPayloadLen)
	dst = appendUint32BE(dst, prevSize)
	dst = append(dst, firstKey...)
	dst = append(dst, lastKey...)
	return dst
}

func appendUint16BE(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func appendUint32BE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendUvarint(dst []byte, v uint64) []byte {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	return append(dst, b[:n]...)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
