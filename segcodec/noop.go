package segcodec

// NoOpCodec bypasses compression entirely. It exists for tests and
// benchmarks that want to measure the writer/reader pipeline's overhead
// independent of LZ4, never for production transaction files (those are
// always LZ4, per §4.1).
type NoOpCodec struct{}

var _ Codec = NoOpCodec{}

// NewNoOpCodec creates a codec that copies data through unchanged.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

// Compress returns the input slice as-is.
//
// Note: the returned slice shares the input's underlying array. Callers
// must not mutate the input afterward.
func (NoOpCodec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is.
func (NoOpCodec) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
