package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAreValid(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "transaction", cfg.Gossip.Topic)
	require.Zero(t, cfg.Network.ListenPort, "default port is OS-assigned")
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	mutate := func(fn func(*Config)) *Config {
		cfg, _ := Load()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"negative port", mutate(func(c *Config) { c.Network.ListenPort = -1 })},
		{"port too high", mutate(func(c *Config) { c.Network.ListenPort = 70000 })},
		{"empty topic", mutate(func(c *Config) { c.Gossip.Topic = "" })},
		{"zero message size", mutate(func(c *Config) { c.Gossip.MaxMessageSize = 0 })},
		{"zero expiry", mutate(func(c *Config) { c.Network.PeerExpiry = 0 })},
		{"sweep longer than expiry", mutate(func(c *Config) {
			c.Network.ExpirySweep = time.Minute
			c.Network.PeerExpiry = time.Second
		})},
		{"zero put timeout", mutate(func(c *Config) { c.Store.PutTimeout = 0 })},
		{"zero get quorum", mutate(func(c *Config) { c.Store.GetQuorum = 0 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}
}
