package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"sync/atomic"
	"time"
)

// NowMillis returns the current wall-clock time as milliseconds since the
// Unix epoch, the timestamp origination scheme spec.md §3 requires for
// every write.
func NowMillis() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// NodeID derives a short, process-scoped identifier used only for log
// correlation and metric labelling; it is never persisted and has no
// bearing on protocol semantics or the two-peer membership model.
func NodeID() string {
	timestamp := time.Now().UnixNano()
	random := rand.Int63()

	h := sha256.New()
	binary.Write(h, binary.BigEndian, timestamp)
	binary.Write(h, binary.BigEndian, random)

	return hex.EncodeToString(h.Sum(nil)[:8])
}

var connCounter uint64

// NextConnID returns a monotonically increasing per-process counter used
// to tag Dispatcher connection log lines; it never appears on the wire.
func NextConnID() uint64 {
	return atomic.AddUint64(&connCounter, 1)
}
