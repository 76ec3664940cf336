package p2p

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*peerRegistry, *Manager) {
	m := &Manager{
		Events:  make(chan Event, 16),
		metrics: &NetworkMetrics{},
	}
	r := newPeerRegistry(m)
	m.registry = r
	return r, m
}

func TestObserveReportsNewPeersOnce(t *testing.T) {
	r, _ := newTestRegistry()
	p := peer.ID("12D3KooWNeighbor")

	require.True(t, r.observe(p, nil))
	require.False(t, r.observe(p, nil), "a repeat announcement is a refresh, not a join")
	require.Equal(t, 1, r.len())
}

func TestSweepEvictsOnlyStalePeers(t *testing.T) {
	r, _ := newTestRegistry()
	stale := peer.ID("12D3KooWStale")
	fresh := peer.ID("12D3KooWFresh")

	r.observe(stale, nil)
	r.observe(fresh, nil)
	r.peers[stale].lastSeen = time.Now().Add(-time.Minute)

	expired := r.sweep(30 * time.Second)
	require.Equal(t, []peer.ID{stale}, expired)
	require.Equal(t, 1, r.len())

	// A peer seen again after eviction is a fresh join.
	require.True(t, r.observe(stale, nil))
}

func TestSweepDoesNotEvictBeforeExpiry(t *testing.T) {
	r, _ := newTestRegistry()
	p := peer.ID("12D3KooWNeighbor")
	r.observe(p, nil)

	require.Empty(t, r.sweep(30*time.Second))
	require.Equal(t, 1, r.len())
}

func TestRefreshExtendsLifetime(t *testing.T) {
	r, _ := newTestRegistry()
	p := peer.ID("12D3KooWNeighbor")
	r.observe(p, nil)
	r.peers[p].lastSeen = time.Now().Add(-25 * time.Second)

	// A message relay refreshes the peer before the window closes.
	r.refresh(p)
	require.Empty(t, r.sweep(30*time.Second))
}

func TestRefreshIgnoresUnknownPeers(t *testing.T) {
	r, _ := newTestRegistry()

	// A Left must never fire for a peer never Joined, so refresh does not
	// create entries.
	r.refresh(peer.ID("12D3KooWStranger"))
	require.Equal(t, 0, r.len())
}

func TestEmitDropsWhenChannelFull(t *testing.T) {
	m := &Manager{Events: make(chan Event, 1), metrics: &NetworkMetrics{}}

	m.emit(Event{Type: RoutingUpdated})
	m.emit(Event{Type: RoutingUpdated}) // must not block

	require.Len(t, m.Events, 1)
}

func TestEventTypeStrings(t *testing.T) {
	require.Equal(t, "peer_joined", PeerJoined.String())
	require.Equal(t, "peer_left", PeerLeft.String())
	require.Equal(t, "message_delivered", MessageDelivered.String())
	require.Equal(t, "routing_updated", RoutingUpdated.String())
	require.Equal(t, "listen_addr", ListenAddr.String())
	require.Equal(t, "unknown", EventType(42).String())
}
