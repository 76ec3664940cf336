package p2p

import (
	"sync"
	"time"
)

// NetworkMetrics tracks P2P network performance
type NetworkMetrics struct {
	MessagesReceived   int64
	MessagesPublished  int64
	DuplicatesDropped  int64
	PeersDiscovered    int64
	PeersExpired       int64
	ConnectionAttempts int64
	FailedConnections  int64
	PeerCount          int64
	LastMessageTime    time.Time
	mu                 sync.RWMutex
}

func (nm *NetworkMetrics) IncrementMessagesReceived() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.MessagesReceived++
	nm.LastMessageTime = time.Now()
}

func (nm *NetworkMetrics) IncrementMessagesPublished() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.MessagesPublished++
}

func (nm *NetworkMetrics) IncrementDuplicatesDropped() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.DuplicatesDropped++
}

func (nm *NetworkMetrics) IncrementPeersDiscovered() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.PeersDiscovered++
}

func (nm *NetworkMetrics) IncrementPeersExpired() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.PeersExpired++
}

func (nm *NetworkMetrics) IncrementConnectionAttempts() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.ConnectionAttempts++
}

func (nm *NetworkMetrics) IncrementFailedConnections() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.FailedConnections++
}

func (nm *NetworkMetrics) UpdatePeerCount(count int64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.PeerCount = count
}

func (nm *NetworkMetrics) GetSnapshot() map[string]interface{} {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return map[string]interface{}{
		"messages_received":   nm.MessagesReceived,
		"messages_published":  nm.MessagesPublished,
		"duplicates_dropped":  nm.DuplicatesDropped,
		"peers_discovered":    nm.PeersDiscovered,
		"peers_expired":       nm.PeersExpired,
		"connection_attempts": nm.ConnectionAttempts,
		"failed_connections":  nm.FailedConnections,
		"peer_count":          nm.PeerCount,
		"last_message_time":   nm.LastMessageTime,
	}
}
