package dispatcher

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
	"github.com/ritikchawla/peerkv/src/wire"
)

type recordingReplicator struct {
	pushed []string
}

func (r *recordingReplicator) Push(command string) {
	r.pushed = append(r.pushed, command)
}

func newTestDispatcher() (*Dispatcher, *recordingReplicator) {
	idx := merkle.NewIndex()
	store := kv.New(idx)
	rep := &recordingReplicator{}
	return New(store, idx, rep, nil, "test-node"), rep
}

func TestDispatchGetOnEmptyStoreReturnsEmptyString(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "", d.Dispatch("GET foo"))
}

func TestDispatchSetThenGetRoundTrips(t *testing.T) {
	d, rep := newTestDispatcher()
	assert.Equal(t, "OK", d.Dispatch("SET foo bar"))
	assert.Equal(t, "bar", d.Dispatch("GET foo"))
	require.Len(t, rep.pushed, 1)
	assert.Contains(t, rep.pushed[0], "PROPAGATE SET foo bar ")
}

func TestDispatchPropagatedSetDoesNotReplicateFurther(t *testing.T) {
	d, rep := newTestDispatcher()
	assert.Equal(t, "OK", d.Dispatch("PROPAGATE SET foo bar 42"))
	assert.Empty(t, rep.pushed)
	entry, ok := d.store.GetWithTimestamp("foo")
	require.True(t, ok)
	assert.Equal(t, uint64(42), entry.Timestamp)
}

func TestDispatchStalePropagatedSetIsRejected(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "OK", d.Dispatch("PROPAGATE SET foo bar 100"))
	assert.Equal(t, "ERROR: Outdated timestamp", d.Dispatch("PROPAGATE SET foo baz 50"))
	assert.Equal(t, "bar", d.Dispatch("GET foo"))
}

func TestDispatchDelRejectsAbsentKey(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "ERROR: Key not found or outdated timestamp", d.Dispatch("DEL missing"))
}

func TestDispatchDelRemovesKeyAndReplicates(t *testing.T) {
	d, rep := newTestDispatcher()
	d.Dispatch("SET foo bar")
	rep.pushed = nil
	assert.Equal(t, "OK", d.Dispatch("DEL foo"))
	assert.Equal(t, "", d.Dispatch("GET foo"))
	require.Len(t, rep.pushed, 1)

	pushedReq, err := wire.ParseRequest(rep.pushed[0])
	require.NoError(t, err)
	assert.True(t, pushedReq.Propagated)
	assert.Equal(t, wire.CmdDel, pushedReq.Command)
	assert.Equal(t, "foo", pushedReq.Key)
}

func TestDispatchGetAllReflectsStoreContents(t *testing.T) {
	d, _ := newTestDispatcher()
	d.Dispatch("SET a 1")
	d.Dispatch("SET b 2")
	reply := d.Dispatch("GET_ALL")
	assert.Contains(t, reply, "a:")
	assert.Contains(t, reply, "b:")
}

func TestDispatchGetMerkleRootEmptyWhenStoreEmpty(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "EMPTY", d.Dispatch("GET_MERKLE_ROOT"))
}

func TestDispatchGetMerkleRootNonEmptyAfterSet(t *testing.T) {
	d, _ := newTestDispatcher()
	d.Dispatch("SET foo bar")
	reply := d.Dispatch("GET_MERKLE_ROOT")
	assert.NotEqual(t, "EMPTY", reply)
	assert.Len(t, reply, 64)
}

func TestDispatchGetPathsReturnsPathsForKnownKeys(t *testing.T) {
	d, _ := newTestDispatcher()
	d.Dispatch("SET foo bar")
	reply := d.Dispatch("GET_PATHS foo;missing;")
	assert.Contains(t, reply, "foo,")
	assert.NotContains(t, reply, "missing,")
}

func TestDispatchGetTSReturnsValueAndTimestamp(t *testing.T) {
	d, _ := newTestDispatcher()
	d.Dispatch("PROPAGATE SET foo bar 777")
	assert.Equal(t, "bar:777", d.Dispatch("GET_TS foo"))
}

func TestDispatchGetTSOnMissingKeyReturnsEmpty(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "", d.Dispatch("GET_TS missing"))
}

func TestDispatchMalformedRequestReturnsInvalidCommand(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Equal(t, "Invalid command", d.Dispatch("GET"))
	assert.Equal(t, "Invalid command", d.Dispatch("GET ALL"))
	assert.Equal(t, "Invalid command", d.Dispatch("FROBNICATE x"))
}

func TestServeHandlesRealConnection(t *testing.T) {
	d, _ := newTestDispatcher()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go d.Serve(ln)

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("SET alpha beta"))
	require.NoError(t, err)
	conn.(*net.TCPConn).CloseWrite()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(buf[:n]))
	_ = ctx
}
