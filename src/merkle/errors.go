package merkle

import "errors"

var (
	// ErrMalformedHash is returned when a hex-encoded root or leaf hash
	// cannot be decoded to exactly 32 bytes.
	ErrMalformedHash = errors.New("merkle: malformed hash")

	// ErrMalformedPath is returned when a serialised inclusion path does
	// not decode to a whole number of (direction, sibling) segments
	// following the leaf hash. Surfaced at the Reconciler boundary as a
	// transport-equivalent error per the error taxonomy, never as a
	// Store-observable fault.
	ErrMalformedPath = errors.New("merkle: malformed path")

	// ErrOrdinalOutOfRange is returned by Tree.Path for an ordinal beyond
	// the current leaf count.
	ErrOrdinalOutOfRange = errors.New("merkle: ordinal out of range")
)
