package reconciler

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikchawla/peerkv/src/dispatcher"
	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
	"github.com/ritikchawla/peerkv/src/transport"
)

// startPeer wires a Store+Index+Dispatcher and serves it on an ephemeral
// port, returning the address and the underlying store/index so tests
// can seed state and assert on convergence.
func startPeer(t *testing.T) (addr string, store *kv.Store, index *merkle.Index) {
	t.Helper()
	index = merkle.NewIndex()
	store = kv.New(index)
	d := dispatcher.New(store, index, nil, nil, "peer")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go d.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), store, index
}

func fastTransport() *transport.Transport {
	return transport.New(transport.Config{DialTimeout: time.Second, ReadTimeout: time.Second})
}

func TestRunOnceReportsSyncedWhenBothEmpty(t *testing.T) {
	peerAddr, _, _ := startPeer(t)
	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	assert.Equal(t, "synced", r.RunOnce())
}

func TestRunOnceReportsSyncedWhenRootsMatch(t *testing.T) {
	peerAddr, peerStore, _ := startPeer(t)
	peerStore.Set("k", "v", 100)

	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)
	localStore.Set("k", "v", 100)

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	assert.Equal(t, "synced", r.RunOnce())
}

func TestRunOnceDiffPullsMissingKeyFromPeer(t *testing.T) {
	peerAddr, peerStore, _ := startPeer(t)
	peerStore.Set("only-on-peer", "value", 500)

	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)
	localStore.Set("local-only", "other", 200)

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	outcome := r.RunOnce()
	assert.Contains(t, []string{"diff_pull", "full_pull"}, outcome)

	entry, ok := localStore.GetWithTimestamp("only-on-peer")
	require.True(t, ok)
	assert.Equal(t, "value", entry.Value)
}

func TestRunOncePreservesPeerTimestampOnTargetedPull(t *testing.T) {
	peerAddr, peerStore, _ := startPeer(t)
	peerStore.Set("shared", "peer-value", 999)

	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)
	localStore.Set("shared", "local-value", 100)
	localStore.Set("padding", "x", 1) // give both sides a non-trivial index so paths compare

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	r.RunOnce()

	entry, ok := localStore.GetWithTimestamp("shared")
	require.True(t, ok)
	// Whichever path resolved the divergence, LWW must pick the higher
	// peer timestamp.
	assert.Equal(t, uint64(999), entry.Timestamp)
	assert.Equal(t, "peer-value", entry.Value)
}

func TestRunOnceFallsBackToFullPullWhenPeerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)
	localStore.Set("k", "v", 1)

	tr := transport.New(transport.Config{DialTimeout: 50 * time.Millisecond, ReadTimeout: 50 * time.Millisecond})
	r := New(addr, localStore, localIndex, tr, nil, nil, "local")
	assert.Equal(t, "error", r.RunOnce())
}

func TestStateTransitionsThroughRound(t *testing.T) {
	peerAddr, peerStore, _ := startPeer(t)
	peerStore.Set("k", "v", 1)

	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	assert.Equal(t, StateIdle, r.State())
	r.RunOnce()
	assert.Equal(t, StateIdle, r.State())
}

func TestRunStopsCleanly(t *testing.T) {
	peerAddr, _, _ := startPeer(t)
	localIndex := merkle.NewIndex()
	localStore := kv.New(localIndex)

	r := New(peerAddr, localStore, localIndex, fastTransport(), nil, nil, "local")
	go r.Run()
	time.Sleep(20 * time.Millisecond)
	r.Stop()
}
