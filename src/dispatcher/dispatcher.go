// Package dispatcher implements the request dispatcher: it accepts a TCP
// connection, reads exactly one request, routes it to the Store and
// Index, serialises a reply, and closes the connection. It multiplexes
// client commands, replication pushes, and reconciliation queries over
// the single wire protocol defined in spec.md §4.3/§6.
package dispatcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
	"github.com/ritikchawla/peerkv/src/metrics"
	"github.com/ritikchawla/peerkv/src/util"
	"github.com/ritikchawla/peerkv/src/wire"
)

// Replicator is the capability the Dispatcher needs to hand off an
// eager push after an accepted, non-propagated client write. It is an
// interface so tests can stub it without standing up the real
// bounded-pool Replicator.
type Replicator interface {
	Push(command string)
}

// noopReplicator drops every push; used when the Dispatcher is
// exercised without replication wired in (e.g. Store/Index unit tests
// driven through the wire protocol).
type noopReplicator struct{}

func (noopReplicator) Push(string) {}

// Dispatcher owns the TCP listener and routes parsed requests to the
// Store and Index.
type Dispatcher struct {
	store      *kv.Store
	index      merkle.IndexInterface
	replicator Replicator
	metrics    *metrics.Metrics
	nodeID     string
}

// New constructs a Dispatcher. replicator may be nil, in which case
// pushes are silently dropped (useful for tests of Store/Index
// semantics in isolation).
func New(store *kv.Store, index merkle.IndexInterface, replicator Replicator, m *metrics.Metrics, nodeID string) *Dispatcher {
	if replicator == nil {
		replicator = noopReplicator{}
	}
	return &Dispatcher{store: store, index: index, replicator: replicator, metrics: m, nodeID: nodeID}
}

// ListenAndServe binds addr and accepts connections until the listener
// is closed (typically by the caller on shutdown). Each accepted
// connection is serviced in its own goroutine so the acceptor never
// blocks on a slow or client.
func (d *Dispatcher) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return d.Serve(ln)
}

// Serve runs the accept loop against an already-bound listener, letting
// callers choose the bind strategy (e.g. ":0" for an ephemeral port in
// tests) before handing control to the Dispatcher.
func (d *Dispatcher) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return err
		}
		go d.handleConn(conn)
	}
}

func (d *Dispatcher) handleConn(conn net.Conn) {
	connID := util.NextConnID()
	defer conn.Close()

	raw, err := readRequest(conn)
	if err != nil {
		log.Printf("[dispatcher %s] conn %d: read error: %v", d.nodeID, connID, err)
		return
	}

	reply := d.Dispatch(raw)
	if _, err := conn.Write([]byte(reply)); err != nil {
		log.Printf("[dispatcher %s] conn %d: write error: %v", d.nodeID, connID, err)
	}
}

func readRequest(conn net.Conn) (string, error) {
	r := bufio.NewReader(conn)
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return string(buf), nil
			}
			return string(buf), err
		}
	}
}

func isClosedErr(err error) bool {
	return err == net.ErrClosed
}

// Dispatch parses raw and routes it, returning the reply that would be
// written back to the client. Exported so tests (and any future
// in-process callers) can drive the protocol without real sockets.
func (d *Dispatcher) Dispatch(raw string) string {
	req, err := wire.ParseRequest(raw)
	if err != nil {
		log.Printf("[dispatcher %s] %v", d.nodeID, fmt.Errorf("%w: %q", util.ErrInvalidCommand, raw))
		return wire.ReplyInvalidCommand
	}

	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(req.Command).Inc()
	}

	// Keys and values written to the Store must satisfy the wire grammar's
	// delimiter constraints; a write that does not is a malformed command.
	switch req.Command {
	case wire.CmdSet:
		if !kv.ValidateToken(req.Key) || !kv.ValidateToken(req.Value) {
			return wire.ReplyInvalidCommand
		}
	case wire.CmdDel:
		if !kv.ValidateToken(req.Key) {
			return wire.ReplyInvalidCommand
		}
	}

	switch req.Command {
	case wire.CmdGet:
		return d.store.Get(req.Key)
	case wire.CmdGetTS:
		entry, ok := d.store.GetWithTimestamp(req.Key)
		return wire.EncodeGetTS(entry.Value, entry.Timestamp, ok)
	case wire.CmdSet:
		return d.handleSet(req)
	case wire.CmdDel:
		return d.handleDel(req)
	case wire.CmdGetAll:
		return wire.EncodeGetAll(d.store.KeysWithTimestamps())
	case wire.CmdGetMerkleRoot:
		return wire.EncodeMerkleRoot(d.index)
	case wire.CmdGetPaths:
		return wire.EncodeGetPathsReply(d.index.Paths(req.RequestKeys))
	default:
		return wire.ReplyInvalidCommand
	}
}

func (d *Dispatcher) handleSet(req *wire.Request) string {
	timestamp := req.Timestamp
	if !req.Propagated {
		timestamp = util.NowMillis()
	}

	accepted, err := d.store.Set(req.Key, req.Value, timestamp)
	d.countWrite("set", accepted)
	if err != nil {
		return wire.ReplyStaleSet
	}
	if !req.Propagated {
		d.replicator.Push(wire.FormatPropagateSet(req.Key, req.Value, timestamp))
	}
	return wire.ReplyOK
}

func (d *Dispatcher) handleDel(req *wire.Request) string {
	timestamp := req.Timestamp
	if !req.Propagated {
		timestamp = util.NowMillis()
	}

	accepted, err := d.store.Del(req.Key, timestamp)
	d.countWrite("del", accepted)
	if err != nil {
		if errors.Is(err, util.ErrKeyNotFound) {
			log.Printf("[dispatcher %s] DEL %s: key not found", d.nodeID, req.Key)
		} else {
			log.Printf("[dispatcher %s] DEL %s: %v", d.nodeID, req.Key, err)
		}
		return wire.ReplyStaleDel
	}
	if !req.Propagated {
		d.replicator.Push(wire.FormatPropagateDel(req.Key, timestamp))
	}
	return wire.ReplyOK
}

func (d *Dispatcher) countWrite(op string, accepted bool) {
	if d.metrics == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	d.metrics.StoreWrites.WithLabelValues(op, outcome).Inc()
}
