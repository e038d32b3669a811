// Package kv implements the timestamp-ordered key-value store described in
// the core's data model: a set of Entries keyed uniquely by Key, resolved
// under last-writer-wins semantics, with every mutation observed by an
// attached index under the same exclusion domain.
package kv

import (
	"sort"
	"sync"

	"github.com/ritikchawla/peerkv/src/util"
)

// KeyTimestamp pairs a key with its current Entry timestamp, used for the
// cheap anti-entropy projection (Store.KeysWithTimestamps).
type KeyTimestamp struct {
	Key       string
	Timestamp uint64
}

// Snapshot pairs a key with its full Entry, used by the Index on rebuild
// and by reconciliation full-pull replies.
type Snapshot struct {
	Key   string
	Value string
	Timestamp uint64
}

// IndexObserver is the capability a Store uses to notify an attached index
// of state changes, resolving the Store<->Index reference cycle from the
// design notes into one-way ownership: the Store holds this handle, the
// index implements it, and the index knows nothing of the Store type.
type IndexObserver interface {
	OnStateChange(snapshot []Snapshot)
}

// NullObserver is a no-op IndexObserver, useful for exercising the Store in
// isolation (e.g. in tests) without attaching a real Merkle index.
type NullObserver struct{}

// OnStateChange implements IndexObserver.
func (NullObserver) OnStateChange([]Snapshot) {}

// Store is a set of Entries keyed uniquely by Key, serialised under a
// single exclusion domain that also guards the attached observer's
// rebuild, so no reader ever sees a Store state the observer has not
// already caught up to.
type Store struct {
	mu       sync.Mutex
	entries  map[string]Entry
	observer IndexObserver
}

// New constructs a Store attached to the given observer. The observer is
// notified once immediately, covering the empty-store startup case so its
// root is never observed stale relative to the (empty) Store.
func New(observer IndexObserver) *Store {
	if observer == nil {
		observer = NullObserver{}
	}
	s := &Store{
		entries:  make(map[string]Entry),
		observer: observer,
	}
	s.observer.OnStateChange(nil)
	return s
}

// Get returns the stored value for key, or the empty string if absent.
// Never fails.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].Value
}

// GetWithTimestamp returns the Entry for key and whether it was present.
func (s *Store) GetWithTimestamp(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Set installs (key, value, timestamp) iff the key is absent or timestamp
// is greater than or equal to the stored timestamp. Ties favour the
// incoming write, making re-propagation idempotent. On acceptance the
// attached observer is rebuilt before Set returns, while the exclusion
// domain is still held. The returned error is util.ErrStaleWrite,
// matched with errors.Is at call sites that care, when the write is
// rejected as stale; nil on acceptance.
func (s *Store) Set(key, value string, timestamp uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[key]
	if ok && timestamp < existing.Timestamp {
		return false, util.ErrStaleWrite
	}
	s.entries[key] = Entry{Value: value, Timestamp: timestamp}
	s.observer.OnStateChange(s.snapshotLocked())
	return true, nil
}

// Del removes key iff it exists and timestamp is greater than or equal to
// its stored timestamp. On acceptance the attached observer is rebuilt
// before Del returns. The returned error distinguishes util.ErrKeyNotFound
// from util.ErrStaleWrite so callers that want to tell the two apart can
// with errors.Is; the wire reply collapses both into one message per
// spec.md §4.3.
func (s *Store) Del(key string, timestamp uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[key]
	if !ok {
		return false, util.ErrKeyNotFound
	}
	if timestamp < existing.Timestamp {
		return false, util.ErrStaleWrite
	}
	delete(s.entries, key)
	s.observer.OnStateChange(s.snapshotLocked())
	return true, nil
}

// Snapshot returns a consistent point-in-time copy of the Store contents,
// ordered ascending by key so index leaf ordinals are reproducible across
// runs for the same logical state.
func (s *Store) Snapshot() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Snapshot {
	out := make([]Snapshot, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, Snapshot{Key: k, Value: e.Value, Timestamp: e.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KeysWithTimestamps returns the cheaper (key, timestamp) projection of
// Snapshot, in the same deterministic ascending-key order.
func (s *Store) KeysWithTimestamps() []KeyTimestamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]KeyTimestamp, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, KeyTimestamp{Key: k, Timestamp: e.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len reports the number of live entries, mainly for metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
