// Package segcodec provides the segment payload codec: the compression
// layer segment frames (§4.1) are defined in terms of.
//
// The wire format fixes LZ4 block compression as the only algorithm for
// segment payloads — the segment header carries no algorithm tag, so a
// reader has no way to know which codec to use for an arbitrary segment
// unless it's always the same one. NoOpCodec exists only for tests and
// benchmarks that want to isolate the writer/reader pipeline from LZ4
// itself; production transaction files always use Default().
//
//	codec := segcodec.Default()
//	compressed, _ := codec.Compress(escapedPayload)
//	original, _ := codec.Decompress(compressed)
package segcodec
