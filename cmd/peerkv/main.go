package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ritikchawla/peerkv/src/node"
	"github.com/ritikchawla/peerkv/src/util"
)

func main() {
	nodeID := flag.String("id", "", "Node ID, used only for log lines (derived at startup when empty)")
	listenAddr := flag.String("addr", ":7000", "Address the client/peer dispatcher listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address the /metrics endpoint listens on (empty disables it)")
	peerHost := flag.String("peer-host", "", "Peer host (overridden by -peers if given)")
	peerPort := flag.Int("peer-port", 0, "Peer port (overridden by -peers if given)")
	peersFile := flag.String("peers", "peers.json", "Optional JSON peer configuration file: {\"peer_host\":\"...\",\"peer_port\":N}; tolerated if missing")
	workers := flag.Int("replicator-workers", 4, "Bounded worker-pool size for outbound replication pushes")
	healthThreshold := flag.Int("health-threshold", 3, "Consecutive failures before the peer is reported unhealthy")
	flag.Parse()

	if *nodeID == "" {
		*nodeID = util.NodeID()
	}

	cfg := node.Config{
		NodeID:            *nodeID,
		ListenAddr:        *listenAddr,
		MetricsAddr:       *metricsAddr,
		PeerHost:          *peerHost,
		PeerPort:          *peerPort,
		ReplicatorWorkers: *workers,
		HealthThreshold:   *healthThreshold,
	}

	if *peersFile != "" {
		if err := loadPeer(*peersFile, &cfg); err != nil {
			log.Fatal(err)
		}
	}

	n := node.New(cfg)
	if err := n.Start(); err != nil {
		log.Fatal(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[node %s] shutting down", *nodeID)
	n.Shutdown()
}
