package p2p

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
)

// Local discovery. mDNS announces presence on the local segment; the registry
// tracks last-seen times so peers that stop announcing are eventually reported
// as gone. mDNS itself has no expiry notion, only the registry does.

// peerRegistry maps discovered peers to their most recent observation.
type peerRegistry struct {
	mgr   *Manager
	mu    sync.Mutex
	peers map[peer.ID]*peerEntry
}

type peerEntry struct {
	lastSeen time.Time
	addrs    []multiaddr.Multiaddr
}

func newPeerRegistry(m *Manager) *peerRegistry {
	return &peerRegistry{
		mgr:   m,
		peers: make(map[peer.ID]*peerEntry),
	}
}

// startMDNSDiscovery starts local network peer discovery. The manager itself
// is the notifee.
func (m *Manager) startMDNSDiscovery() error {
	service := mdns.NewMdnsService(m.Host, m.cfg.Network.ServiceTag, m)
	if err := service.Start(); err != nil {
		return err
	}
	m.mdns = service
	log.Infof("mDNS discovery started with service tag %q", m.cfg.Network.ServiceTag)
	return nil
}

// HandlePeerFound is called by the mDNS service for every announcement heard.
// A first sighting (or a sighting after expiry) raises PeerJoined; repeats
// just refresh the last-seen time.
func (m *Manager) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.Host.ID() {
		return
	}
	if m.registry.observe(pi.ID, pi.Addrs) {
		m.metrics.IncrementPeersDiscovered()
		log.Infof("Discovered new peer via mDNS: %s", pi.ID.String())
		m.emit(Event{Type: PeerJoined, Peer: pi.ID, Addrs: pi.Addrs})
	}
}

// TouchPeer refreshes a peer's last-seen time from outside discovery, e.g.
// when a gossip relay proves the peer is still alive.
func (m *Manager) TouchPeer(p peer.ID) {
	if p == m.Host.ID() {
		return
	}
	m.registry.refresh(p)
}

// observe records a sighting and reports whether the peer is new.
func (r *peerRegistry) observe(p peer.ID, addrs []multiaddr.Multiaddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, known := r.peers[p]
	if !known {
		r.peers[p] = &peerEntry{lastSeen: time.Now(), addrs: addrs}
		return true
	}
	entry.lastSeen = time.Now()
	if len(addrs) > 0 {
		entry.addrs = addrs
	}
	return false
}

// refresh updates last-seen for an already-known peer. Unknown peers are
// ignored: a Left must never be emitted without a preceding Joined, so the
// registry only tracks peers discovery has actually reported.
func (r *peerRegistry) refresh(p peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, known := r.peers[p]; known {
		entry.lastSeen = time.Now()
	}
}

// sweep evicts entries older than the expiry window and returns the evicted
// peers.
func (r *peerRegistry) sweep(expiry time.Duration) []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []peer.ID
	cutoff := time.Now().Add(-expiry)
	for p, entry := range r.peers {
		if entry.lastSeen.Before(cutoff) {
			delete(r.peers, p)
			expired = append(expired, p)
		}
	}
	return expired
}

func (r *peerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// expiryLoop periodically evicts peers that stopped announcing and raises
// PeerLeft for each.
func (r *peerRegistry) expiryLoop(sweep, expiry time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, p := range r.sweep(expiry) {
				r.mgr.metrics.IncrementPeersExpired()
				log.Infof("Discovered peer expired: %s", p.String())
				r.mgr.emit(Event{Type: PeerLeft, Peer: p})
			}
		case <-r.mgr.Ctx.Done():
			return
		}
	}
}
