package storage

import (
	"context"
	"testing"
	"time"

	kb "github.com/libp2p/go-libp2p-kbucket"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/stretchr/testify/require"

	"github.com/SAMAD101/chain-gossip/config"
)

// fakeRouter is an in-process routing.ValueStore.
type fakeRouter struct {
	values  map[string][]byte
	putErr  error
	getErr  error
	putKeys []string
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{values: make(map[string][]byte)}
}

func (f *fakeRouter) PutValue(ctx context.Context, key string, value []byte, opts ...routing.Option) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.values[key] = value
	f.putKeys = append(f.putKeys, key)
	return nil
}

func (f *fakeRouter) GetValue(ctx context.Context, key string, opts ...routing.Option) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.values[key]
	if !ok {
		return nil, routing.ErrNotFound
	}
	return value, nil
}

func (f *fakeRouter) SearchValue(ctx context.Context, key string, opts ...routing.Option) (<-chan []byte, error) {
	out := make(chan []byte)
	close(out)
	return out, nil
}

func newTestStore(t *testing.T, router routing.ValueStore) *Distributed {
	t.Helper()
	local, err := NewLocal()
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	return NewDistributed(router, local, config.StoreConfig{
		PutTimeout: time.Second,
		GetQuorum:  1,
	})
}

func TestRoutedKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "transaction key", key: "transaction:12345", want: "/transaction/12345"},
		{name: "peer key", key: "peer:12D3KooWPeer", want: "/peer/12D3KooWPeer"},
		{name: "missing namespace", key: "12345", wantErr: true},
		{name: "empty namespace", key: ":12345", wantErr: true},
		{name: "empty suffix", key: "transaction:", wantErr: true},
		{name: "unknown namespace", key: "block:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := routedKey(tt.key)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPutThenGetReadsLocally(t *testing.T) {
	router := newFakeRouter()
	store := newTestStore(t, router)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "transaction:42", []byte("record-bytes")))

	got, err := store.Get(ctx, "transaction:42")
	require.NoError(t, err)
	require.Equal(t, []byte("record-bytes"), got)

	// The value also went out to the network under the routed key.
	require.Equal(t, []string{"/transaction/42"}, router.putKeys)
}

func TestPutKeepsLocalCopyWhenNetworkFails(t *testing.T) {
	router := newFakeRouter()
	router.putErr = kb.ErrLookupFailure
	store := newTestStore(t, router)
	ctx := context.Background()

	err := store.Put(ctx, "transaction:42", []byte("record-bytes"))
	require.ErrorIs(t, err, ErrNoPeers)

	// Local-first read consistency holds even when replication found no one.
	got, err := store.Get(ctx, "transaction:42")
	require.NoError(t, err)
	require.Equal(t, []byte("record-bytes"), got)
}

func TestPutTimeoutReportsQuorumNotMet(t *testing.T) {
	router := newFakeRouter()
	router.putErr = context.DeadlineExceeded
	store := newTestStore(t, router)

	err := store.Put(context.Background(), "peer:abc", []byte("abc"))
	require.ErrorIs(t, err, ErrQuorumNotMet)
}

func TestGetFallsBackToNetwork(t *testing.T) {
	router := newFakeRouter()
	router.values["/transaction/7"] = []byte("remote-bytes")
	store := newTestStore(t, router)
	ctx := context.Background()

	got, err := store.Get(ctx, "transaction:7")
	require.NoError(t, err)
	require.Equal(t, []byte("remote-bytes"), got)

	// The network hit is now cached; a failing router no longer matters.
	router.getErr = routing.ErrNotFound
	got, err = store.Get(ctx, "transaction:7")
	require.NoError(t, err)
	require.Equal(t, []byte("remote-bytes"), got)
}

func TestGetMissingEverywhere(t *testing.T) {
	store := newTestStore(t, newFakeRouter())

	_, err := store.Get(context.Background(), "transaction:nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutOverwritesLastWriterWins(t *testing.T) {
	router := newFakeRouter()
	store := newTestStore(t, router)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "peer:p1", []byte("first")))
	require.NoError(t, store.Put(ctx, "peer:p1", []byte("second")))

	got, err := store.Get(ctx, "peer:p1")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}
