// Package peerhealth tracks reachability of the single peer, adapted
// from the reference cluster's per-peer HealthChecker (failures counted
// per peer id, a threshold before a peer is "unhealthy") down to the
// two-peer case: there is exactly one remote to watch, and the tracker
// is purely observational. Per SPEC_FULL.md §2, it never gates
// correctness — the Reconciler and Replicator behave identically
// regardless of what it reports; it only feeds metrics and log lines.
package peerhealth

import (
	"sync"
	"time"
)

// Tracker counts consecutive failures against the peer and reports
// whether the peer is currently considered healthy.
type Tracker struct {
	mu           sync.Mutex
	failures     int
	lastSuccess  time.Time
	lastFailure  time.Time
	threshold    int
}

// New constructs a Tracker that considers the peer unhealthy once
// threshold consecutive operations (pushes or reconciliation rounds)
// have failed in a row.
func New(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Tracker{threshold: threshold}
}

// RecordSuccess resets the consecutive-failure count.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = 0
	t.lastSuccess = time.Now()
}

// RecordFailure increments the consecutive-failure count.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	t.lastFailure = time.Now()
}

// Healthy reports whether the peer has failed fewer than threshold times
// in a row.
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures < t.threshold
}

// Failures reports the current consecutive-failure count.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}
