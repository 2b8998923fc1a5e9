package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFile(frames [][3][]byte) []byte {
	// frames: each entry is {firstKey, lastKey, payload}
	var out []byte
	prevSize := uint64(0)
	for i, fr := range frames {
		firstKey, lastKey, payload := fr[0], fr[1], fr[2]
		var thisKeyPrev uint64
		if i > 0 && string(frames[i-1][1]) == string(firstKey) {
			// pretend this key continues from the previous segment
			thisKeyPrev = uint64(len(out))
		}
		start := len(out)
		out = EncodeV1Header(out, firstKey, lastKey, uint64(len(payload)), prevSize, thisKeyPrev)
		out = append(out, payload...)
		prevSize = uint64(len(out) - start)
	}
	return out
}

func TestScanFindsAllFrames(t *testing.T) {
	data := buildFile([][3][]byte{
		{[]byte("a"), []byte("b"), []byte("payload1")},
		{[]byte("c"), []byte("d"), []byte("payload2")},
	})

	f, err := Scan(data, 0)
	require.NoError(t, err)
	require.Equal(t, "a", string(f.FirstKey))
	require.Equal(t, "b", string(f.LastKey))
	require.Equal(t, "payload1", string(f.Payload))
	require.EqualValues(t, 0, f.PrevSize)

	next := f.SegmentOffset + f.Stride()
	f2, err := Scan(data, next)
	require.NoError(t, err)
	require.Equal(t, "c", string(f2.FirstKey))
	require.Equal(t, "payload2", string(f2.Payload))
	require.EqualValues(t, f.Stride(), f2.PrevSize)
}

func TestScanTruncatedTail(t *testing.T) {
	data := buildFile([][3][]byte{{[]byte("a"), []byte("b"), []byte("payload")}})
	truncated := data[:len(data)-3]

	_, err := Scan(truncated, 0)
	require.Error(t, err)
}

func TestScanNoMarker(t *testing.T) {
	_, err := Scan([]byte("no marker here"), 0)
	require.Error(t, err)
}

func TestEscapeRoundTrip(t *testing.T) {
	payload := append([]byte("prefix "), Marker...)
	payload = append(payload, []byte(" suffix")...)

	escaped := Escape(payload)
	require.NotEqual(t, payload, escaped)

	unescaped := Unescape(escaped)
	require.Equal(t, payload, unescaped)
}

func TestEscapeNoMarkerIsNoop(t *testing.T) {
	payload := []byte("nothing special here")
	require.Equal(t, payload, Escape(payload))
	require.Equal(t, payload, Unescape(payload))
}

func TestScanSkipsEscapedMarkerInPayload(t *testing.T) {
	// A payload that embeds an escaped marker must not be mistaken for a frame start.
	inner := Escape(append([]byte("xx"), Marker...))
	data := EncodeV1Header(nil, []byte("a"), []byte("b"), uint64(len(inner)), 0, 0)
	data = append(data, inner...)
	data = EncodeV1Header(data, []byte("c"), []byte("d"), 5, uint64(len(data)), 0)
	data = append(data, []byte("hello")...)

	f, err := Scan(data, 0)
	require.NoError(t, err)
	require.Equal(t, "a", string(f.FirstKey))

	f2, err := Scan(data, f.SegmentOffset+f.Stride())
	require.NoError(t, err)
	require.Equal(t, "c", string(f2.FirstKey))
	require.Equal(t, "hello", string(f2.Payload))
}

func TestV0Legacy(t *testing.T) {
	data := EncodeV0Header(nil, []byte("k1"), []byte("k2"), 5, 0)
	data = append(data, []byte("hello")...)

	f, err := Scan(data, 0)
	require.NoError(t, err)
	require.Equal(t, VersionV0, f.Version)
	require.EqualValues(t, 0, f.ThisKeyPrev)
	require.Equal(t, "hello", string(f.Payload))
}
