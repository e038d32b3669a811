package main

import (
	"encoding/json"
	"os"

	"github.com/ritikchawla/peerkv/src/node"
)

// peerConfig mirrors the on-disk JSON shape for the -peers flag: a
// single peer, since this core replicates between exactly two nodes.
type peerConfig struct {
	PeerHost string `json:"peer_host"`
	PeerPort int    `json:"peer_port"`
}

// loadPeer reads the peer config file and applies it to cfg. A missing
// file is tolerated (SPEC_FULL.md §6): -peers defaults to peers.json, and
// most single-node or flag-configured deployments never create it.
func loadPeer(filename string, cfg *node.Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var pc peerConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return err
	}
	cfg.PeerHost = pc.PeerHost
	cfg.PeerPort = pc.PeerPort
	return nil
}
