// Package node wires discovery, gossip, and the distributed store into one
// event loop. The loop is the only place cross-subsystem state changes happen:
// subsystems never reference each other, they only emit events the loop
// reacts to.
package node

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/SAMAD101/chain-gossip/config"
	"github.com/SAMAD101/chain-gossip/core/transaction"
	"github.com/SAMAD101/chain-gossip/network/p2p"
	"github.com/SAMAD101/chain-gossip/storage"
)

var log = logging.Logger("chain-gossip/node")

// gossipNet is the slice of the p2p manager the event loop drives.
type gossipNet interface {
	ID() peer.ID
	Publish(topic string, data []byte) (string, error)
	AddPeer(pi peer.AddrInfo)
	RemovePeer(p peer.ID)
	TouchPeer(p peer.ID)
	GetStats() map[string]interface{}
}

// recordStore is the slice of the distributed store the event loop drives.
type recordStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Node is the orchestrator owning the peer identity and one instance of each
// subsystem.
type Node struct {
	cfg     *config.Config
	manager *p2p.Manager
	local   *storage.Local

	net    gossipNet
	store  recordStore
	events <-chan p2p.Event
	lines  <-chan string

	isRunning bool
	mu        sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a node from the configuration. Startup failures here (host bind,
// gossip construction, DHT setup) are fatal by design.
func New(cfg *config.Config, lines <-chan string) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	manager, err := p2p.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create p2p manager: %w", err)
	}

	local, err := storage.NewLocal()
	if err != nil {
		manager.Cancel()
		manager.Host.Close()
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	return &Node{
		cfg:     cfg,
		manager: manager,
		local:   local,
		net:     manager,
		store:   storage.NewDistributed(manager.DHT, local, cfg.Store),
		events:  manager.Events,
		lines:   lines,
	}, nil
}

// ID returns the local peer identity.
func (n *Node) ID() peer.ID {
	return n.net.ID()
}

// Start launches the p2p services and the event loop.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isRunning {
		return fmt.Errorf("node is already running")
	}

	if err := n.manager.Start(); err != nil {
		return fmt.Errorf("failed to start p2p services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(ctx)

	n.isRunning = true
	log.Infof("Node started with peer ID %s", n.net.ID().String())
	return nil
}

// Stop shuts the node down gracefully.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.isRunning {
		return fmt.Errorf("node is not running")
	}

	n.cancel()
	<-n.done

	if err := n.manager.Stop(); err != nil {
		log.Warnf("Error stopping p2p services: %v", err)
	}
	if err := n.local.Close(); err != nil {
		log.Warnf("Error closing local cache: %v", err)
	}

	n.isRunning = false
	log.Info("Node stopped")
	return nil
}

// run services local input and subsystem events until canceled. Neither
// source is starved: select picks ready channels fairly. Steady-state errors
// are logged and the triggering input dropped, never retried.
func (n *Node) run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case line, ok := <-n.lines:
			if !ok {
				n.lines = nil
				continue
			}
			n.handleLine(ctx, line)

		case ev, ok := <-n.events:
			if !ok {
				return
			}
			n.handleEvent(ctx, ev)

		case <-ctx.Done():
			return
		}
	}
}

// handleLine turns one input line into a published transaction. The line
// content itself is not carried; it is only the publish trigger.
func (n *Node) handleLine(ctx context.Context, line string) {
	_ = line

	record := transaction.New(n.net.ID().String())
	data, err := transaction.Encode(record)
	if err != nil {
		log.Errorf("Failed to encode transaction: %v", err)
		return
	}

	id, err := n.net.Publish(n.cfg.Gossip.Topic, data)
	if err != nil {
		log.Errorf("Publish error: %v", err)
		return
	}
	log.Infof("Published transaction %s from %s at %d", id, record.Sender, record.Timestamp)
}

// handleEvent dispatches one subsystem event. Unrecognized kinds are a no-op.
func (n *Node) handleEvent(ctx context.Context, ev p2p.Event) {
	switch ev.Type {
	case p2p.PeerJoined:
		log.Infof("mDNS discovered a new peer: %s", ev.Peer.String())
		n.net.AddPeer(peer.AddrInfo{ID: ev.Peer, Addrs: ev.Addrs})

	case p2p.PeerLeft:
		log.Infof("mDNS discovered peer has expired: %s", ev.Peer.String())
		n.net.RemovePeer(ev.Peer)

	case p2p.MessageDelivered:
		n.handleDelivery(ctx, ev)

	case p2p.RoutingUpdated:
		log.Infof("Routing table updated, peer joined DHT: %s", ev.Peer.String())

	case p2p.ListenAddr:
		for _, addr := range ev.Addrs {
			log.Infof("Local node is listening on %s/p2p/%s", addr, ev.Peer.String())
		}

	default:
		// Forward-compatible no-op.
	}
}

// handleDelivery stores a delivered transaction and the identity of the peer
// that relayed it. Both writes use quorum one; a relay through a second path
// never reaches here because the router deduplicates by content id.
func (n *Node) handleDelivery(ctx context.Context, ev p2p.Event) {
	record, err := transaction.Decode(ev.Data)
	if err != nil {
		log.Warnf("Discarding undecodable message %s from %s: %v", ev.ID, ev.Peer.String(), err)
		return
	}

	log.Infof("Received transaction %s from sender %s via peer %s",
		ev.ID, record.Sender, ev.Peer.String())

	// A relayed message is also a liveness proof for the relaying peer.
	n.net.TouchPeer(ev.Peer)

	if err := n.store.Put(ctx, "transaction:"+ev.ID, ev.Data); err != nil {
		log.Warnf("Failed to store transaction %s: %v", ev.ID, err)
	}
	if err := n.store.Put(ctx, "peer:"+ev.Peer.String(), []byte(ev.Peer)); err != nil {
		log.Warnf("Failed to store peer record for %s: %v", ev.Peer.String(), err)
	}
}

// Lookup fetches a stored record by its namespaced key.
func (n *Node) Lookup(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, key)
}

// Stats returns a snapshot of node and network state for status reporting.
func (n *Node) Stats() map[string]interface{} {
	n.mu.Lock()
	running := n.isRunning
	n.mu.Unlock()

	stats := map[string]interface{}{
		"running": running,
		"topic":   n.cfg.Gossip.Topic,
	}
	for k, v := range n.net.GetStats() {
		stats[k] = v
	}
	return stats
}
