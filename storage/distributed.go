package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	kb "github.com/libp2p/go-libp2p-kbucket"
	"github.com/libp2p/go-libp2p/core/routing"

	"github.com/SAMAD101/chain-gossip/config"
)

var (
	// ErrNotFound reports a key absent from both the cache and the network.
	ErrNotFound = errors.New("record not found")
	// ErrNoPeers reports a replication attempt with an empty routing table.
	ErrNoPeers = errors.New("no peers available for replication")
	// ErrQuorumNotMet reports a put that timed out before any remote ack.
	ErrQuorumNotMet = errors.New("replication quorum not met")
	// ErrInvalidKey reports a key outside the supported namespaces.
	ErrInvalidKey = errors.New("invalid record key")
)

// Distributed replicates records toward the DHT peers closest to each key and
// keeps a write-through local cache so a node can always read back its own
// puts. Writes are last-writer-wins; there is no consensus layer.
type Distributed struct {
	router routing.ValueStore
	local  *Local
	cfg    config.StoreConfig
}

// NewDistributed wires the DHT value router to the local cache.
func NewDistributed(router routing.ValueStore, local *Local, cfg config.StoreConfig) *Distributed {
	return &Distributed{
		router: router,
		local:  local,
		cfg:    cfg,
	}
}

// routedKey translates a logical "namespace:rest" key into the slash-separated
// form the DHT routes by. Only the transaction and peer namespaces exist.
func routedKey(key string) (string, error) {
	ns, rest, found := strings.Cut(key, ":")
	if !found || ns == "" || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	switch ns {
	case "transaction", "peer":
		return "/" + ns + "/" + rest, nil
	default:
		return "", fmt.Errorf("%w: unknown namespace %q", ErrInvalidKey, ns)
	}
}

// Put stores a record locally and initiates replication to the closest known
// peers, waiting at most the configured timeout for the quorum-one ack. The
// local write survives a failed replication; the caller logs and moves on.
func (d *Distributed) Put(ctx context.Context, key string, value []byte) error {
	rkey, err := routedKey(key)
	if err != nil {
		return err
	}

	if err := d.local.Set(key, value); err != nil {
		return err
	}

	putCtx, cancel := context.WithTimeout(ctx, d.cfg.PutTimeout)
	defer cancel()

	if err := d.router.PutValue(putCtx, rkey, value); err != nil {
		switch {
		case errors.Is(err, kb.ErrLookupFailure):
			return fmt.Errorf("put %s: %w", key, ErrNoPeers)
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("put %s: %w", key, ErrQuorumNotMet)
		default:
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return nil
}

// Get returns the most recently observed value for a key: the local cache
// first, then the closest network peers. Network hits refresh the cache.
func (d *Distributed) Get(ctx context.Context, key string) ([]byte, error) {
	rkey, err := routedKey(key)
	if err != nil {
		return nil, err
	}

	if value, err := d.local.Get(key); err == nil {
		return value, nil
	}

	value, err := d.router.GetValue(ctx, rkey, dht.Quorum(d.cfg.GetQuorum))
	if err != nil {
		if errors.Is(err, routing.ErrNotFound) || errors.Is(err, kb.ErrLookupFailure) {
			return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if cacheErr := d.local.Set(key, value); cacheErr != nil {
		return value, nil
	}
	return value, nil
}
