// Package replicator implements the eager propagation side of
// replication: every accepted client write is pushed to the peer as a
// PROPAGATE command, fired and forgotten by the Dispatcher. Grounded on
// the reference cluster's connectToPeer/reconnectFailedPeers retry
// style (node.go) generalised from a per-peer reconnect ticker to a
// bounded worker pool of push jobs, per SPEC_FULL.md §4.4's invited
// improvement over the original implementation's one-thread-per-push
// design.
package replicator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ritikchawla/peerkv/src/metrics"
	"github.com/ritikchawla/peerkv/src/peerhealth"
	"github.com/ritikchawla/peerkv/src/transport"
)

// DefaultWorkers is the fixed worker-pool size named in SPEC_FULL.md
// §4.4.
const DefaultWorkers = 4

// MaxAttempts bounds the exponential backoff schedule: attempts
// 0..MaxAttempts-1, sleeping 100ms*2^i between attempts i and i+1.
const MaxAttempts = 5

const baseBackoff = 100 * time.Millisecond

// Replicator pushes PROPAGATE commands to a single peer through a
// bounded pool of workers, retrying each push with exponential backoff
// before giving up.
type Replicator struct {
	peerAddr string
	transport *transport.Transport
	health    *peerhealth.Tracker
	metrics   *metrics.Metrics
	nodeID    string

	jobs    chan string
	workers int
	wg      sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

// New constructs a Replicator targeting peerAddr. workers<=0 defaults
// to DefaultWorkers. Pushes made before Start wait in the queue; nothing
// is delivered until Start launches the workers.
func New(peerAddr string, t *transport.Transport, health *peerhealth.Tracker, m *metrics.Metrics, nodeID string, workers int) *Replicator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Replicator{
		peerAddr:  peerAddr,
		transport: t,
		health:    health,
		metrics:   m,
		nodeID:    nodeID,
		jobs:      make(chan string, 256),
		workers:   workers,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the worker pool. Safe to call once.
func (r *Replicator) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop signals the workers to exit and waits for them to return. A push
// in flight finishes its current attempt but is not retried after it;
// queued-but-not-yet-started jobs are abandoned per spec.md §4.4's
// fire-and-forget contract.
func (r *Replicator) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// Push enqueues a PROPAGATE command for background delivery. It never
// blocks the Dispatcher: if the queue is full, the push is dropped and
// logged, matching spec.md §9's fire-and-forget requirement (the
// eventual anti-entropy round will repair the divergence).
func (r *Replicator) Push(command string) {
	select {
	case r.jobs <- command:
	default:
		log.Printf("[replicator %s] queue full, dropping push %q", r.nodeID, command)
	}
}

func (r *Replicator) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case command := <-r.jobs:
			r.deliver(command)
		}
	}
}

func (r *Replicator) deliver(command string) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if r.metrics != nil {
			r.metrics.PushAttempts.Inc()
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.transport.ReadTimeout())
		err := r.transport.Send(ctx, r.peerAddr, command)
		cancel()
		if err == nil {
			if r.health != nil {
				r.health.RecordSuccess()
			}
			if r.metrics != nil {
				r.metrics.PushSuccesses.Inc()
			}
			return
		}

		if attempt == MaxAttempts-1 {
			log.Printf("[replicator %s] giving up on push %q after %d attempts: %v", r.nodeID, command, MaxAttempts, err)
			if r.health != nil {
				r.health.RecordFailure()
			}
			if r.metrics != nil {
				r.metrics.PushExhausted.Inc()
			}
			return
		}

		select {
		case <-r.stopCh:
			return
		case <-time.After(baseBackoff * time.Duration(1<<uint(attempt))):
		}
	}
}
