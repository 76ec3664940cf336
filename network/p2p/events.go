package p2p

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// EventType tags the events the manager emits to the node's event loop.
type EventType int

const (
	// PeerJoined reports a peer newly seen by local discovery.
	PeerJoined EventType = iota
	// PeerLeft reports a discovered peer whose announcements expired.
	PeerLeft
	// MessageDelivered reports a gossip message delivered once per content id.
	MessageDelivered
	// RoutingUpdated reports a peer added to the DHT routing table.
	RoutingUpdated
	// ListenAddr reports an address the host is listening on.
	ListenAddr
)

// Event is one entry on the manager's event stream. Only the fields relevant
// to the Type are populated; consumers dispatch on Type and ignore the rest.
type Event struct {
	Type  EventType
	Peer  peer.ID
	Addrs []multiaddr.Multiaddr
	Topic string
	// ID is the content-derived message identifier for MessageDelivered.
	ID   string
	Data []byte
}

func (t EventType) String() string {
	switch t {
	case PeerJoined:
		return "peer_joined"
	case PeerLeft:
		return "peer_left"
	case MessageDelivered:
		return "message_delivered"
	case RoutingUpdated:
		return "routing_updated"
	case ListenAddr:
		return "listen_addr"
	default:
		return "unknown"
	}
}
