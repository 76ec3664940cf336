// Package p2p manages the libp2p host and the discovery, gossip, and DHT
// services layered on it. All network activity is reported to the node through
// a single buffered event channel; the manager never calls back into the node.
package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	"github.com/SAMAD101/chain-gossip/config"
	"github.com/SAMAD101/chain-gossip/core/transaction"
)

var log = logging.Logger("chain-gossip/p2p")

// discoveredTag marks connections opened in response to discovery events so
// the connection manager does not prune them.
const discoveredTag = "discovered"

// Manager owns the libp2p host and the services built on it.
type Manager struct {
	Host   host.Host
	Ctx    context.Context
	Cancel context.CancelFunc
	PubSub *pubsub.PubSub
	DHT    *dht.IpfsDHT

	// Events carries everything the node loop reacts to.
	Events chan Event

	cfg *config.Config

	// Topic management
	joinedTopics map[string]*pubsub.Topic
	topicsMu     sync.RWMutex

	// Local discovery
	registry *peerRegistry
	mdns     interface{ Close() error }

	// Rate limiting for publishes
	rateLimiter *rate.Limiter

	// Metrics
	metrics *NetworkMetrics

	bootstrapPeers []multiaddr.Multiaddr
}

// NewManager initializes the libp2p host, GossipSub router, and Kademlia DHT.
// Any failure here is a startup failure; callers abort rather than retry.
func NewManager(cfg *config.Config) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var bootstrapPeers []multiaddr.Multiaddr
	for _, addr := range cfg.Network.BootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			log.Warnf("Invalid bootstrap peer address %s: %v", addr, err)
			continue
		}
		bootstrapPeers = append(bootstrapPeers, maddr)
	}

	cm, err := connmgr.NewConnManager(16, 64, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", cfg.Network.ListenPort)),
		libp2p.ConnectionManager(cm),
		libp2p.NATPortMap(),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	log.Infof("Libp2p host created with Peer ID: %s, listening on: %s",
		h.ID().String(), h.Addrs())

	// Message id is derived from content only, so identical payloads relayed
	// via different peers collapse to one id and the router deduplicates them.
	params := pubsub.DefaultGossipSubParams()
	params.HeartbeatInterval = cfg.Gossip.HeartbeatInterval

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
		pubsub.WithMaxMessageSize(cfg.Gossip.MaxMessageSize),
		pubsub.WithGossipSubParams(params),
		pubsub.WithMessageIdFn(func(pmsg *pb.Message) string {
			return transaction.ContentID(pmsg.Data)
		}),
	)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	kademliaDHT, err := dht.New(ctx, h,
		dht.Mode(dht.ModeServer),
		dht.NamespacedValidator("transaction", permissiveValidator{}),
		dht.NamespacedValidator("peer", permissiveValidator{}),
		dht.Datastore(dssync.MutexWrap(ds.NewMapDatastore())),
	)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	manager := &Manager{
		Host:           h,
		Ctx:            ctx,
		Cancel:         cancel,
		PubSub:         ps,
		DHT:            kademliaDHT,
		Events:         make(chan Event, 1000),
		cfg:            cfg,
		joinedTopics:   make(map[string]*pubsub.Topic),
		rateLimiter:    rate.NewLimiter(rate.Limit(cfg.Gossip.PublishRate), cfg.Gossip.PublishBurst),
		metrics:        &NetworkMetrics{},
		bootstrapPeers: bootstrapPeers,
	}
	manager.registry = newPeerRegistry(manager)

	return manager, nil
}

// Start starts all P2P services and subscribes to the transaction topic.
func (m *Manager) Start() error {
	m.connectToBootstrapPeers()

	// Hook the routing table before Bootstrap spawns the goroutines that
	// mutate it.
	m.hookRoutingTable()
	if err := m.DHT.Bootstrap(m.Ctx); err != nil {
		return fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	if err := m.subscribeTopic(m.cfg.Gossip.Topic); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", m.cfg.Gossip.Topic, err)
	}

	if err := m.startMDNSDiscovery(); err != nil {
		return fmt.Errorf("failed to start mDNS discovery: %w", err)
	}
	go m.registry.expiryLoop(m.cfg.Network.ExpirySweep, m.cfg.Network.PeerExpiry)

	for _, addr := range m.Host.Addrs() {
		m.emit(Event{Type: ListenAddr, Peer: m.Host.ID(), Addrs: []multiaddr.Multiaddr{addr}})
	}

	log.Info("P2P services started successfully")
	return nil
}

// Stop gracefully shuts down all P2P services.
func (m *Manager) Stop() error {
	log.Info("Shutting down P2P services...")

	m.Cancel()

	if m.mdns != nil {
		if err := m.mdns.Close(); err != nil {
			log.Warnf("Error closing mDNS service: %v", err)
		}
	}

	m.topicsMu.Lock()
	for _, topic := range m.joinedTopics {
		if err := topic.Close(); err != nil {
			log.Warnf("Error closing topic: %v", err)
		}
	}
	m.topicsMu.Unlock()

	if m.DHT != nil {
		if err := m.DHT.Close(); err != nil {
			log.Warnf("Error closing DHT: %v", err)
		}
	}

	if err := m.Host.Close(); err != nil {
		return fmt.Errorf("error closing libp2p host: %w", err)
	}

	// Events stays open: a producer caught between context cancellation and
	// teardown may still emit, and the consumer loop exits on its own cancel.
	log.Info("P2P services shut down successfully")
	return nil
}

// hookRoutingTable surfaces routing table changes as informational events.
func (m *Manager) hookRoutingTable() {
	rt := m.DHT.RoutingTable()
	prev := rt.PeerAdded
	rt.PeerAdded = func(p peer.ID) {
		if prev != nil {
			prev(p)
		}
		m.emit(Event{Type: RoutingUpdated, Peer: p})
	}
}

// emit delivers an event without ever blocking a network callback. A full
// channel means the consumer loop is wedged; dropping is the lesser evil.
func (m *Manager) emit(ev Event) {
	select {
	case m.Events <- ev:
	default:
		log.Warnf("Event channel full, dropping %s event", ev.Type)
	}
}

// ID returns the local peer identity.
func (m *Manager) ID() peer.ID {
	return m.Host.ID()
}

// AddPeer connects to a discovered peer and protects the connection so it is
// always part of the gossip mesh regardless of connection manager scoring.
func (m *Manager) AddPeer(pi peer.AddrInfo) {
	if pi.ID == m.Host.ID() {
		return
	}
	m.Host.ConnManager().Protect(pi.ID, discoveredTag)
	go func() {
		m.metrics.IncrementConnectionAttempts()
		connectCtx, cancel := context.WithTimeout(m.Ctx, m.cfg.Network.ConnectTimeout)
		defer cancel()
		if err := m.Host.Connect(connectCtx, pi); err != nil {
			m.metrics.IncrementFailedConnections()
			log.Warnf("Failed to connect to discovered peer %s: %v", pi.ID.String(), err)
			return
		}
		log.Infof("Connected to discovered peer %s", pi.ID.String())
	}()
}

// RemovePeer drops a peer from the always-connected set.
func (m *Manager) RemovePeer(p peer.ID) {
	m.Host.ConnManager().Unprotect(p, discoveredTag)
	if err := m.Host.Network().ClosePeer(p); err != nil {
		log.Warnf("Error closing connection to peer %s: %v", p.String(), err)
	}
}

// connectToBootstrapPeers dials the configured bootstrap peers with retry.
func (m *Manager) connectToBootstrapPeers() {
	var wg sync.WaitGroup
	for _, addr := range m.bootstrapPeers {
		pi, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			log.Warnf("Invalid bootstrap peer address %s: %v", addr, err)
			continue
		}
		if pi.ID == m.Host.ID() {
			continue
		}
		wg.Add(1)
		go func(pi peer.AddrInfo) {
			defer wg.Done()
			m.connectWithRetry(pi, 3)
		}(*pi)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("Bootstrap peer connection attempts timed out")
	}
}

// connectWithRetry attempts to connect to a peer with exponential backoff.
func (m *Manager) connectWithRetry(pi peer.AddrInfo, maxRetries int) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		m.metrics.IncrementConnectionAttempts()

		connectCtx, cancel := context.WithTimeout(m.Ctx, m.cfg.Network.ConnectTimeout)
		err := m.Host.Connect(connectCtx, pi)
		cancel()

		if err == nil {
			log.Infof("Connected to peer: %s (attempt %d)", pi.ID.String(), attempt)
			return
		}

		m.metrics.IncrementFailedConnections()
		log.Warnf("Failed to connect to peer %s (attempt %d/%d): %v",
			pi.ID.String(), attempt, maxRetries, err)

		if attempt < maxRetries {
			backoff := time.Duration(attempt*attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-m.Ctx.Done():
				return
			}
		}
	}
}

// GetStats returns P2P statistics including metrics.
func (m *Manager) GetStats() map[string]interface{} {
	m.topicsMu.RLock()
	joined := len(m.joinedTopics)
	m.topicsMu.RUnlock()

	stats := map[string]interface{}{
		"peer_id":          m.Host.ID().String(),
		"connected_peers":  len(m.Host.Network().Peers()),
		"listen_addrs":     m.Host.Addrs(),
		"bootstrap_peers":  len(m.bootstrapPeers),
		"joined_topics":    joined,
		"discovered_peers": m.registry.len(),
	}
	for k, v := range m.metrics.GetSnapshot() {
		stats[k] = v
	}
	return stats
}

// GetPeerCount returns the number of connected peers.
func (m *Manager) GetPeerCount() int {
	return len(m.Host.Network().Peers())
}

// permissiveValidator accepts any record bytes. Transaction and peer records
// carry opaque values; there is no schema to enforce at the DHT layer, and
// conflicting writes resolve last-writer-wins.
type permissiveValidator struct{}

func (permissiveValidator) Validate(key string, value []byte) error { return nil }

func (permissiveValidator) Select(key string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("no values to select for key %s", key)
	}
	return 0, nil
}
