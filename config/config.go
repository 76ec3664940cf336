package config

import (
	"fmt"
	"time"
)

type Config struct {
	// Node configuration
	NodeID   string `json:"node_id"`
	LogLevel string `json:"log_level"`

	// Network configuration
	Network NetworkConfig `json:"network"`

	// Gossip configuration
	Gossip GossipConfig `json:"gossip"`

	// Store configuration
	Store StoreConfig `json:"store"`
}

type NetworkConfig struct {
	// ListenPort of 0 binds an OS-assigned port.
	ListenPort     int           `json:"listen_port"`
	BootstrapPeers []string      `json:"bootstrap_peers"`
	ServiceTag     string        `json:"service_tag"`
	PeerExpiry     time.Duration `json:"peer_expiry"`
	ExpirySweep    time.Duration `json:"expiry_sweep"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

type GossipConfig struct {
	Topic             string        `json:"topic"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	MaxMessageSize    int           `json:"max_message_size"`
	PublishRate       float64       `json:"publish_rate"`
	PublishBurst      int           `json:"publish_burst"`
}

type StoreConfig struct {
	PutTimeout time.Duration `json:"put_timeout"`
	GetQuorum  int           `json:"get_quorum"`
}

// Load returns the default configuration.
func Load() (*Config, error) {
	return &Config{
		NodeID:   "chain-gossip-node",
		LogLevel: "info",
		Network: NetworkConfig{
			ListenPort:     0,
			BootstrapPeers: []string{},
			ServiceTag:     "chain-gossip",
			PeerExpiry:     30 * time.Second,
			ExpirySweep:    5 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Gossip: GossipConfig{
			Topic:             "transaction",
			HeartbeatInterval: 5 * time.Second,
			MaxMessageSize:    1 << 20, // 1MB
			PublishRate:       100,     // msgs/sec
			PublishBurst:      200,
		},
		Store: StoreConfig{
			PutTimeout: 20 * time.Second,
			GetQuorum:  1,
		},
	}, nil
}

// Validate checks the configuration ranges.
func (c *Config) Validate() error {
	if c.Network.ListenPort < 0 || c.Network.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Network.ListenPort)
	}
	if c.Gossip.Topic == "" {
		return fmt.Errorf("gossip topic cannot be empty")
	}
	if c.Gossip.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d", c.Gossip.MaxMessageSize)
	}
	if c.Network.PeerExpiry <= 0 {
		return fmt.Errorf("invalid peer expiry: %s", c.Network.PeerExpiry)
	}
	if c.Network.ExpirySweep <= 0 || c.Network.ExpirySweep > c.Network.PeerExpiry {
		return fmt.Errorf("expiry sweep %s must be positive and within peer expiry %s",
			c.Network.ExpirySweep, c.Network.PeerExpiry)
	}
	if c.Store.PutTimeout <= 0 {
		return fmt.Errorf("invalid store put timeout: %s", c.Store.PutTimeout)
	}
	if c.Store.GetQuorum < 1 {
		return fmt.Errorf("store get quorum must be at least 1, got %d", c.Store.GetQuorum)
	}
	return nil
}
