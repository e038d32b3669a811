// Package merkle implements the Merkle tree index that summarises Store
// state: leaf hashes over (key, value, timestamp) triples, a root used for
// cheap root-to-root comparison, and inclusion paths used to pinpoint
// which keys actually differ between two peers.
//
// The hash scheme is deliberately not a cryptographically sound Merkle
// leaf construction (see Design Note on leaf hashing): it truncates/pads
// its input into a 32-byte buffer and compresses it against an all-zero
// sibling. It is sufficient for diffing two replicas of the same logical
// data but must never be treated as authenticating content.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Hash is a fixed 256-bit digest.
type Hash [32]byte

// Zero is the all-zeros sentinel returned for an empty tree.
var Zero Hash

// IsZero reports whether h is the all-zeros sentinel.
func (h Hash) IsZero() bool {
	return h == Zero
}

// String renders h as 64 lowercase hex characters.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex decodes a 64-character lowercase hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return Hash{}, ErrMalformedHash
	}
	copy(h[:], b)
	return h, nil
}

// compress performs the one compression step used everywhere in this
// tree: SHA-256 over the concatenation of two child hashes.
func compress(left, right Hash) Hash {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// leafHash derives the leaf input key || ":" || value || ":" ||
// decimal(timestamp), copies up to 32 bytes of it into a left buffer, and
// compresses it against an all-zero right sibling, matching the
// reference scheme exactly.
func leafHash(key, value string, timestamp uint64) Hash {
	combined := key + ":" + value + ":" + strconv.FormatUint(timestamp, 10)

	var left Hash
	copy(left[:], combined) // copies min(len(combined), 32) bytes; zero-pads the rest

	return compress(left, Zero)
}
