// Package node wires the Store, Index, Dispatcher, Replicator, and
// Reconciler into one running process, adapted from the reference
// cluster's main.go wiring (NewRaftNode + StartRaftServer +
// signal-driven Shutdown) down to this core's two-peer shape.
package node

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ritikchawla/peerkv/src/dispatcher"
	"github.com/ritikchawla/peerkv/src/kv"
	"github.com/ritikchawla/peerkv/src/merkle"
	"github.com/ritikchawla/peerkv/src/metrics"
	"github.com/ritikchawla/peerkv/src/peerhealth"
	"github.com/ritikchawla/peerkv/src/reconciler"
	"github.com/ritikchawla/peerkv/src/replicator"
	"github.com/ritikchawla/peerkv/src/transport"
)

// Config holds everything needed to stand up a Node.
type Config struct {
	NodeID     string
	ListenAddr string

	PeerHost string
	PeerPort int

	// MetricsAddr, when non-empty, is bound for the "/metrics" endpoint
	// on a listener wholly separate from ListenAddr. A bind failure here
	// is logged and otherwise ignored: SPEC_FULL.md §6 treats metrics
	// exposure as non-fatal to the replicated store's operation.
	MetricsAddr string

	ReplicatorWorkers int
	HealthThreshold   int
}

func (c Config) peerAddr() string {
	if c.PeerHost == "" {
		return ""
	}
	return net.JoinHostPort(c.PeerHost, strconv.Itoa(c.PeerPort))
}

// Node owns every long-running component for one peer of the store.
type Node struct {
	cfg Config

	store *kv.Store
	index *merkle.Index

	transport   *transport.Transport
	health      *peerhealth.Tracker
	metrics     *metrics.Metrics
	dispatcher  *dispatcher.Dispatcher
	replicator  *replicator.Replicator
	reconciler  *reconciler.Reconciler

	dispatchLn net.Listener
	metricsSrv *http.Server
}

// New constructs a Node and all its components, but starts nothing.
func New(cfg Config) *Node {
	index := merkle.NewIndex()
	store := kv.New(index)

	m := metrics.New()
	health := peerhealth.New(cfg.HealthThreshold)
	tr := transport.New(transport.DefaultConfig())

	var rep *replicator.Replicator
	var rec *reconciler.Reconciler
	if addr := cfg.peerAddr(); addr != "" {
		rep = replicator.New(addr, tr, health, m, cfg.NodeID, cfg.ReplicatorWorkers)
		rec = reconciler.New(addr, store, index, tr, health, m, cfg.NodeID)
	}

	var disp *dispatcher.Dispatcher
	if rep != nil {
		disp = dispatcher.New(store, index, rep, m, cfg.NodeID)
	} else {
		disp = dispatcher.New(store, index, nil, m, cfg.NodeID)
	}

	return &Node{
		cfg:        cfg,
		store:      store,
		index:      index,
		transport:  tr,
		health:     health,
		metrics:    m,
		dispatcher: disp,
		replicator: rep,
		reconciler: rec,
	}
}

// Start binds the dispatch listener, starts the replicator and reconciler
// if a peer is configured, and starts the metrics HTTP server if
// MetricsAddr is set, returning once the dispatch listener is bound. All
// serving loops run in background goroutines.
func (n *Node) Start() error {
	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return err
	}
	n.dispatchLn = ln
	go func() {
		if err := n.dispatcher.Serve(ln); err != nil {
			log.Printf("[node %s] dispatcher stopped: %v", n.cfg.NodeID, err)
		}
	}()

	if n.replicator != nil {
		n.replicator.Start()
	}
	if n.reconciler != nil {
		go n.reconciler.Run()
	}

	if n.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.metrics.Handler())
		n.metricsSrv = &http.Server{Addr: n.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := n.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[node %s] metrics server error (non-fatal): %v", n.cfg.NodeID, err)
			}
		}()
	}

	log.Printf("[node %s] listening on %s", n.cfg.NodeID, n.cfg.ListenAddr)
	return nil
}

// Shutdown stops every component in reverse dependency order, giving
// each a bounded window to finish in-flight work.
func (n *Node) Shutdown() {
	if n.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if n.reconciler != nil {
		n.reconciler.Stop()
	}
	if n.replicator != nil {
		n.replicator.Stop()
	}
	if n.dispatchLn != nil {
		n.dispatchLn.Close()
	}
}

// Store exposes the underlying Store, mainly for tests that want to
// seed or inspect state without going through the wire protocol.
func (n *Node) Store() *kv.Store { return n.store }

// Index exposes the underlying Index for the same reason.
func (n *Node) Index() *merkle.Index { return n.index }
