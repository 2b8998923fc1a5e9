// Package segment implements the on-disk segment frame format (§4.1): the
// literal marker, its two header versions, the escape sequence that lets a
// payload contain the marker literally, and the forward scanner that finds
// frames in a byte slice (normally a memory-mapped transaction file).
//
// Grounded on mebo's section package (fixed-size, explicitly-versioned
// binary headers parsed with bounds-checked Parse functions) but adapted
// from mebo's single fixed 32-byte header to spec.md's two frame versions
// (v0 fixed, v1 varint) sharing one marker and scan procedure.
package segment

// Marker is the literal 14-byte ASCII sentinel that precedes every segment
// frame (§4.1, §6).
var Marker = []byte("@TSDB_SEGMENT_")

// Version codes immediately following Marker.
const (
	VersionV0     uint16 = 0x0000 // fixed u32 header, read-only legacy
	VersionV1     uint16 = 0x0100 // varint header, preferred for new writes
	VersionEscape uint16 = 0xFFFF // literal marker embedded in payload data
)

// TargetSize is the approximate uncompressed size a segment is closed at
// (§3: "Segment target uncompressed size is ≈128 KiB").
const TargetSize = 128 * 1024

// MinSplitSize is the compressed-range threshold below which the database
// reader's parallel split refuses to split (§4.5: "32 × segment_target").
const MinSplitSize = 32 * TargetSize
