// Package hash provides a fast, non-cryptographic hash for index's
// per-reader "last segment found" lookup cache (§4.2) — an in-memory
// accelerator only, never used for on-disk key identity.
//
// Adapted from mebo's internal/hash/id.go: that package hashes string
// tag names for a blob's collision cache; index's cache keys are the
// []byte key slices segment.Frame already carries, so ID here hashes
// bytes directly instead of taking a string and forcing callers to
// allocate one on every lookup.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of data.
func ID(data []byte) uint64 {
	return xxhash.Sum64(data)
}
