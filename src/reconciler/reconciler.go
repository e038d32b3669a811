// Package reconciler implements the periodic anti-entropy round: compare
// Merkle roots with the peer, and if they differ, pull only the keys
// that actually diverged. Grounded directly on the reference
// implementation's AntiEntropyManager::run_anti_entropy (a single
// connection walked through GET_MERKLE_ROOT -> GET_ALL -> GET_PATHS ->
// per-key GET), adapted to this wire protocol's one-request-per-
// connection shape: each step opens its own short-lived Exchange
// instead of reusing one socket.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
	"github.com/ritikchawla/peerkv/src/metrics"
	"github.com/ritikchawla/peerkv/src/peerhealth"
	"github.com/ritikchawla/peerkv/src/transport"
	"github.com/ritikchawla/peerkv/src/util"
	"github.com/ritikchawla/peerkv/src/wire"
)

// Interval is the fixed anti-entropy period from spec.md §4.5.
const Interval = 5 * time.Second

// State names the reconciler's current phase, exposed for tests and
// observability; it carries no behavioural weight of its own.
type State int

const (
	StateIdle State = iota
	StateComparing
	StateDiffing
	StatePulling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateComparing:
		return "COMPARING"
	case StateDiffing:
		return "DIFFING"
	case StatePulling:
		return "PULLING"
	default:
		return "UNKNOWN"
	}
}

// Reconciler runs the periodic anti-entropy loop against a single peer.
type Reconciler struct {
	peerAddr  string
	store     *kv.Store
	index     merkle.IndexInterface
	transport *transport.Transport
	health    *peerhealth.Tracker
	metrics   *metrics.Metrics
	nodeID    string

	mu    sync.Mutex
	state State

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Reconciler. transport's configured timeouts bound
// every step of the round (SPEC_FULL.md §4.5's 2-second addition).
func New(peerAddr string, store *kv.Store, index merkle.IndexInterface, t *transport.Transport, health *peerhealth.Tracker, m *metrics.Metrics, nodeID string) *Reconciler {
	return &Reconciler{
		peerAddr:  peerAddr,
		store:     store,
		index:     index,
		transport: t,
		health:    health,
		metrics:   m,
		nodeID:    nodeID,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// State reports the reconciler's current phase.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run blocks, executing one round immediately and then every Interval,
// until Stop is called. Intended to be launched in its own goroutine.
func (r *Reconciler) Run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	r.runRoundSafely()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runRoundSafely()
		}
	}
}

// Stop signals Run to exit and waits for the current round to finish.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) runRoundSafely() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[reconciler %s] recovered from panic: %v", r.nodeID, rec)
		}
	}()
	start := time.Now()
	outcome := r.RunOnce()
	r.setState(StateIdle)
	if r.metrics != nil {
		r.metrics.ReconcileRounds.WithLabelValues(outcome).Inc()
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}
}

// RunOnce executes exactly one anti-entropy round and returns an
// outcome label ("synced", "diff_pull", "full_pull", or "error") used
// both for metrics and for tests to assert on round behaviour.
func (r *Reconciler) RunOnce() string {
	r.setState(StateComparing)
	defer r.setState(StateIdle)
	ctx, cancel := context.WithTimeout(context.Background(), r.transport.ReadTimeout())
	defer cancel()

	peerRootReply, err := r.transport.Exchange(ctx, r.peerAddr, wire.CmdGetMerkleRoot)
	if err != nil {
		r.recordFailure()
		return r.fullPull(wrapTransportErr(err).Error())
	}
	r.recordSuccess()

	peerRoot, peerEmpty, err := wire.ParseMerkleRoot(peerRootReply)
	if err != nil {
		return r.fullPull(fmt.Errorf("%w: malformed peer root: %v", util.ErrDecode, err).Error())
	}

	localEmpty := r.index.Empty()
	if localEmpty || peerEmpty {
		if localEmpty && peerEmpty {
			return "synced"
		}
		return r.fullPull("one side is empty")
	}

	if peerRoot == r.index.Root() {
		return "synced"
	}

	return r.diffAndPull(ctx)
}

func (r *Reconciler) diffAndPull(ctx context.Context) string {
	r.setState(StateDiffing)

	peerAllReply, err := r.transport.Exchange(ctx, r.peerAddr, wire.CmdGetAll)
	if err != nil {
		r.recordFailure()
		return r.fullPull(wrapTransportErr(err).Error())
	}
	r.recordSuccess()

	peerKTs := wire.ParseGetAll(peerAllReply)
	keys := make([]string, 0, len(peerKTs))
	for _, kt := range peerKTs {
		keys = append(keys, kt.Key)
	}
	if len(keys) == 0 {
		return r.fullPull("peer reported no keys despite differing root")
	}

	pathsReply, err := r.transport.Exchange(ctx, r.peerAddr, wire.CmdGetPaths+" "+wire.FormatKeyList(keys))
	if err != nil {
		r.recordFailure()
		return r.fullPull(wrapTransportErr(err).Error())
	}
	r.recordSuccess()

	entries, ok := wire.ParseGetPathsReply(pathsReply)
	if !ok {
		return r.fullPull(fmt.Errorf("%w: malformed GET_PATHS reply", util.ErrDecode).Error())
	}

	remotePaths := make([]*merkle.Path, 0, len(entries))
	pathKeys := make([]string, 0, len(entries))
	for _, e := range entries {
		remotePaths = append(remotePaths, e.Path)
		pathKeys = append(pathKeys, e.Key)
	}

	differing := r.index.FindDifferences(remotePaths, pathKeys)
	if r.metrics != nil {
		r.metrics.DifferingKeys.Observe(float64(len(differing)))
	}
	if len(differing) == 0 {
		return "synced"
	}

	r.setState(StatePulling)
	for _, key := range differing {
		if err := r.pullOne(ctx, key); err != nil {
			r.recordFailure()
			return r.fullPull(fmt.Errorf("targeted pull failed for %s: %w", key, err).Error())
		}
		r.recordSuccess()
	}
	return "diff_pull"
}

// pullOne fetches a single differing key via GET_TS, preserving the
// peer's original timestamp (SPEC_FULL.md §11 decision 1) so a repeated
// reconciliation round stays idempotent.
func (r *Reconciler) pullOne(ctx context.Context, key string) error {
	reply, err := r.transport.Exchange(ctx, r.peerAddr, wire.FormatGetTS(key))
	if err != nil {
		return wrapTransportErr(err)
	}
	value, timestamp, present, err := wire.ParseGetTS(reply)
	if err != nil || !present {
		return nil // peer no longer has it (or sent an unparsable reply); the local entry is left as it is
	}
	r.store.Set(key, value, timestamp)
	return nil
}

// fullPull is the fallback path taken whenever any step of the targeted
// exchange fails, or either side reports an empty index: it re-fetches
// every key with GET_ALL + per-key GET and applies each with a freshly
// minted local timestamp, since the plain GET/GET_ALL grammar carries
// no timestamp of its own.
func (r *Reconciler) fullPull(reason string) string {
	log.Printf("[reconciler %s] falling back to full pull: %s", r.nodeID, reason)
	r.setState(StatePulling)

	ctx, cancel := context.WithTimeout(context.Background(), r.transport.ReadTimeout())
	defer cancel()

	allReply, err := r.transport.Exchange(ctx, r.peerAddr, wire.CmdGetAll)
	if err != nil {
		r.recordFailure()
		return "error"
	}
	r.recordSuccess()

	for _, kt := range wire.ParseGetAll(allReply) {
		value, err := r.transport.Exchange(ctx, r.peerAddr, wire.FormatGet(kt.Key))
		if err != nil {
			r.recordFailure()
			return "error"
		}
		r.recordSuccess()
		if value == "" {
			continue
		}
		r.store.Set(kt.Key, value, util.NowMillis())
	}
	return "full_pull"
}

// wrapTransportErr tags a raw dial/read/write failure with
// util.ErrTransport so callers further up the stack (or a future
// errors.Is check) can distinguish a peer-unreachable condition from a
// malformed-reply one without parsing the message text.
func wrapTransportErr(err error) error {
	return fmt.Errorf("%w: %v", util.ErrTransport, err)
}

func (r *Reconciler) recordSuccess() {
	if r.health != nil {
		r.health.RecordSuccess()
	}
}

func (r *Reconciler) recordFailure() {
	if r.health != nil {
		r.health.RecordFailure()
	}
}
