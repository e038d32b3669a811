package merkle

import "github.com/ritikchawla/peerkv/src/kv"

// IndexInterface is the capability set a Merkle index exposes, per the
// Design Notes: rebuild, root, paths, find_differences, empty, size. Both
// Index and NullIndex satisfy it, so callers needing only this surface
// (the Reconciler, the Dispatcher's GET_MERKLE_ROOT/GET_PATHS handlers)
// never need to know which implementation they hold.
type IndexInterface interface {
	kv.IndexObserver
	Root() Hash
	Paths(keys []string) []KeyPath
	FindDifferences(remotePaths []*Path, keys []string) []string
	Empty() bool
	Size() int
}

var (
	_ IndexInterface = (*Index)(nil)
	_ IndexInterface = (*NullIndex)(nil)
)

// NullIndex is a no-op index: its rebuild discards the snapshot, its root
// is always the all-zeros sentinel, and it reports every key as present
// nowhere. It exists for full-state-exchange-style tests that want a
// Store without a real Merkle tree attached.
type NullIndex struct{}

// OnStateChange implements kv.IndexObserver as a no-op.
func (NullIndex) OnStateChange([]kv.Snapshot) {}

// Root always returns the empty sentinel.
func (NullIndex) Root() Hash { return Zero }

// Paths always returns no paths.
func (NullIndex) Paths([]string) []KeyPath { return nil }

// FindDifferences always reports every key as differing (an index with no
// state can never claim a key matches).
func (NullIndex) FindDifferences(_ []*Path, keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Empty always reports true.
func (NullIndex) Empty() bool { return true }

// Size always reports zero.
func (NullIndex) Size() int { return 0 }
