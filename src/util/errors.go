// Package util holds small cross-cutting helpers shared by the core
// subsystems: sentinel errors, wall-clock timestamps, and connection
// correlation ids for log lines.
package util

import "errors"

// Sentinel errors matched with errors.Is at internal boundaries (Store,
// wire codec, Reconciler), per the error taxonomy in spec.md §7. None of
// these strings ever reach the wire directly; the fixed reply strings in
// spec.md §4.3 are produced by the dispatcher from these, not from
// err.Error().
var (
	ErrStaleWrite     = errors.New("stale write")
	ErrKeyNotFound    = errors.New("key not found")
	ErrInvalidCommand = errors.New("invalid command")
	ErrTransport      = errors.New("peer transport error")
	ErrDecode         = errors.New("malformed reconciliation payload")
)
