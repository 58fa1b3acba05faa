// Command raftkv runs a single replica of the replicated key-value store.
// It accepts either the spec-mandated positional form or a YAML cluster
// descriptor; grounded on the teacher's cmd/raft/single-server/main.go
// (flag-parsed CLI, signal.NotifyContext shutdown), with the gRPC join
// handshake dropped since this cluster's membership is fixed at startup
// (Section 1 Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/kkorolev/raftkv/internal/config"
	"github.com/kkorolev/raftkv/internal/raft"
	"github.com/kkorolev/raftkv/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML cluster descriptor (overrides positional args)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, flag.Args())
	if err != nil {
		log.Fatalf("raftkv: %v", err)
	}

	peers, err := resolvePeers(cfg)
	if err != nil {
		log.Fatalf("raftkv: %v", err)
	}

	bus, err := transport.NewUDPBus(raft.ServerID(cfg.Node.ID), cfg.Node.Port, peers)
	if err != nil {
		log.Fatalf("raftkv: %v", err)
	}
	defer bus.Close()

	replica := raft.NewReplica(raft.ServerID(cfg.Node.ID), cfg.OtherIDs(), bus)

	log.Printf("raftkv: replica %s listening on port %d, peers=%v", cfg.Node.ID, cfg.Node.Port, cfg.OtherIDs())

	go replica.Run()

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()

	log.Printf("raftkv: shutting down replica %s", cfg.Node.ID)
}

// loadConfig prefers an explicit -config path; otherwise it parses the
// spec's mandated positional form: <port> <id> <otherId>+.
func loadConfig(configPath string, args []string) (*config.ClusterConfig, error) {
	if configPath != "" {
		return config.LoadYAML(configPath)
	}

	if len(args) < 3 {
		return nil, fmt.Errorf("usage: raftkv <port> <id> <otherId>+ (or -config <path>)")
	}

	var port int
	if _, err := fmt.Sscanf(args[0], "%d", &port); err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", args[0], err)
	}

	return config.FromArgs(port, args[1], args[2:])
}

// resolvePeers builds the id->address table the UDP transport needs to
// reach every member of the cluster. A config with no peer entry for this
// replica's own id is rejected.
func resolvePeers(cfg *config.ClusterConfig) (map[raft.ServerID]*net.UDPAddr, error) {
	peers := make(map[raft.ServerID]*net.UDPAddr, len(cfg.Peers))
	for _, p := range cfg.Peers {
		addr, err := net.ResolveUDPAddr("udp", p.Address)
		if err != nil {
			return nil, fmt.Errorf("resolving peer %s address %q: %w", p.ID, p.Address, err)
		}
		peers[raft.ServerID(p.ID)] = addr
	}
	if _, ok := peers[raft.ServerID(cfg.Node.ID)]; !ok {
		return nil, fmt.Errorf("cluster config has no peer entry for own node id %s", cfg.Node.ID)
	}
	return peers, nil
}
