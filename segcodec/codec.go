package segcodec

// Compressor compresses a segment's uncompressed, escaped payload bytes.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
//   - Internal buffers may be reused for efficiency
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a segment payload back to its escaped,
// uncompressed form.
//
// Error conditions:
//   - Returns error if input data is corrupted or truncated
//   - Returns error if decompression buffer allocation fails
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// Default returns the Codec the on-disk segment format is defined in terms
// of. Segment headers (§4.1) carry no algorithm tag, so every segment in
// every transaction file is LZ4-compressed; there is no pluggable codec
// selection at the wire level.
func Default() Codec {
	return NewLZ4Codec()
}
