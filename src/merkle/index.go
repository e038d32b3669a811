package merkle

import (
	"sync"

	"github.com/ritikchawla/peerkv/src/kv"
)

// KeyPath pairs a key with its inclusion path, returned only for keys
// present in the index (absent keys are skipped, never padded).
type KeyPath struct {
	Key  string
	Path *Path
}

// Index is the Merkle tree index over the current Store contents: a full
// rebuild runs on every Store mutation (accepted per Design Notes: n is
// expected to be small, the tree already pays per-mutation traversal
// costs, and incremental ordinal shifting on deletion is a correctness
// hazard this avoids entirely).
type Index struct {
	mu     sync.Mutex
	tree   *Tree
	byKey  map[string]int
}

// NewIndex constructs an empty Index. It satisfies kv.IndexObserver and is
// meant to be handed to kv.New as the Store's observer.
func NewIndex() *Index {
	return &Index{tree: BuildTree(nil), byKey: make(map[string]int)}
}

// OnStateChange implements kv.IndexObserver by rebuilding the tree from
// scratch over the given snapshot.
func (idx *Index) OnStateChange(snapshot []kv.Snapshot) {
	idx.Rebuild(snapshot)
}

// Rebuild discards all leaves, reassigns ordinals in snapshot order, and
// inserts leaves accordingly. Idempotent for identical snapshots.
func (idx *Index) Rebuild(snapshot []kv.Snapshot) {
	leaves := make([]Hash, len(snapshot))
	byKey := make(map[string]int, len(snapshot))
	for i, e := range snapshot {
		leaves[i] = leafHash(e.Key, e.Value, e.Timestamp)
		byKey[e.Key] = i
	}

	idx.mu.Lock()
	idx.tree = BuildTree(leaves)
	idx.byKey = byKey
	idx.mu.Unlock()
}

// Root returns the tree root, or the all-zeros sentinel when empty.
func (idx *Index) Root() Hash {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.Root()
}

// Empty reports whether the index currently holds no leaves.
func (idx *Index) Empty() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.Empty()
}

// Size reports the current leaf count.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.NumLeaves()
}

// Paths returns the inclusion path for each of keys that is present in
// the index; absent keys are skipped, not padded. Callers pair results by
// position against the filtered set of present keys (i.e. the returned
// KeyPath.Key), never against the original keys slice.
func (idx *Index) Paths(keys []string) []KeyPath {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.tree.Empty() {
		return nil
	}

	out := make([]KeyPath, 0, len(keys))
	for _, k := range keys {
		ord, ok := idx.byKey[k]
		if !ok {
			continue
		}
		p, err := idx.tree.Path(ord)
		if err != nil {
			continue
		}
		out = append(out, KeyPath{Key: k, Path: p})
	}
	return out
}

// FindDifferences reports, for each (remotePaths[i], keys[i]) pair, keys[i]
// as differing when the remote path is nil, or when it fails to verify
// against the local root and keys[i] is either absent locally or has a
// local leaf different from the remote path's leaf. A key whose leaf
// matches is never reported, even if other leaves make the path fail to
// verify. If the local tree is empty, every key is reported as differing.
func (idx *Index) FindDifferences(remotePaths []*Path, keys []string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.tree.Empty() {
		out := make([]string, len(keys))
		copy(out, keys)
		return out
	}

	root := idx.tree.Root()
	n := len(remotePaths)
	if len(keys) < n {
		n = len(keys)
	}

	var diff []string
	for i := 0; i < n; i++ {
		p := remotePaths[i]
		if p == nil {
			diff = append(diff, keys[i])
			continue
		}
		if p.Verify(root) {
			continue
		}
		ord, ok := idx.byKey[keys[i]]
		if !ok || idx.tree.leaves[ord] != p.Leaf {
			diff = append(diff, keys[i])
		}
	}
	return diff
}
