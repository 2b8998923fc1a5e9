package segment

import "bytes"

// escapeSuffix is appended after Marker to mark a literal, in-payload
// occurrence of the marker sequence (§4.1, §4.6).
var escapeSuffix = []byte{0xFF, 0xFF}

// Escape replaces every literal occurrence of Marker within payload with
// Marker followed by the two-byte escape suffix, so the scanner never
// mistakes payload content for a frame start. Called on the uncompressed
// chunk payload before compression (§4.6).
func Escape(payload []byte) []byte {
	if !bytes.Contains(payload, Marker) {
		return payload
	}

	out := make([]byte, 0, len(payload)+len(escapeSuffix))
	rest := payload
	for {
		idx := bytes.Index(rest, Marker)
		if idx < 0 {
			out = append(out, rest...)
			return out
		}
		out = append(out, rest[:idx]...)
		out = append(out, Marker...)
		out = append(out, escapeSuffix...)
		rest = rest[idx+len(Marker):]
	}
}

// Unescape reverses Escape: every Marker++0xFF 0xFF sequence becomes a
// literal Marker. Called after LZ4 decompression, before a chunk's bytes
// are handed to callers (§4.3).
func Unescape(payload []byte) []byte {
	needle := append(append([]byte{}, Marker...), escapeSuffix...)
	if !bytes.Contains(payload, needle) {
		return payload
	}

	out := make([]byte, 0, len(payload))
	rest := payload
	for {
		idx := bytes.Index(rest, needle)
		if idx < 0 {
			out = append(out, rest...)
			return out
		}
		out = append(out, rest[:idx]...)
		out = append(out, Marker...)
		rest = rest[idx+len(needle):]
	}
}
