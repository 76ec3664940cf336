package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/SAMAD101/chain-gossip/config"
	"github.com/SAMAD101/chain-gossip/node"
)

func main() {
	var port = flag.Int("port", 0, "P2P listen port (0 = OS-assigned)")
	var bootstraps = flag.String("bootstrap", "", "Comma-separated bootstrap peer multiaddrs")
	var topic = flag.String("topic", "", "Gossip topic (default from config)")
	var logLevel = flag.String("log", "", "Log level (default from config)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.Network.ListenPort = *port
	if *bootstraps != "" {
		cfg.Network.BootstrapPeers = strings.Split(*bootstraps, ",")
	}
	if *topic != "" {
		cfg.Gossip.Topic = *topic
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logging.SetLogLevel("chain-gossip/node", cfg.LogLevel); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	if err := logging.SetLogLevel("chain-gossip/p2p", cfg.LogLevel); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}

	n, err := node.New(cfg, node.ReadLines(os.Stdin))
	if err != nil {
		log.Fatalf("Failed to initialize node: %v", err)
	}

	if err := n.Start(); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}

	fmt.Println("Node is listening for connections...")
	fmt.Println("Type a line and press enter to publish a transaction.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-c:
			fmt.Println("\nShutting down...")
			if err := n.Stop(); err != nil {
				log.Printf("Error stopping node: %v", err)
			}
			return

		case <-statusTicker.C:
			printNodeStatus(n)
		}
	}
}

// printNodeStatus displays node status including gossip and DHT information.
func printNodeStatus(n *node.Node) {
	stats := n.Stats()

	fmt.Println("\n=== NODE STATUS ===")
	fmt.Printf("Peer ID: %v\n", stats["peer_id"])
	fmt.Printf("Running: %v\n", stats["running"])
	fmt.Printf("Topic: %v\n", stats["topic"])
	fmt.Printf("Connected peers: %v\n", stats["connected_peers"])
	fmt.Printf("Discovered peers: %v\n", stats["discovered_peers"])
	fmt.Printf("Messages published: %v\n", stats["messages_published"])
	fmt.Printf("Messages received: %v\n", stats["messages_received"])
	fmt.Println("===================")
}
