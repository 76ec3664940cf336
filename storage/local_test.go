package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalSetGet(t *testing.T) {
	local, err := NewLocal()
	require.NoError(t, err)
	defer local.Close()

	require.NoError(t, local.Set("transaction:1", []byte("one")))

	got, err := local.Get("transaction:1")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)

	_, err = local.Get("transaction:2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalOverwrite(t *testing.T) {
	local, err := NewLocal()
	require.NoError(t, err)
	defer local.Close()

	require.NoError(t, local.Set("peer:a", []byte("v1")))
	require.NoError(t, local.Set("peer:a", []byte("v2")))

	got, err := local.Get("peer:a")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}
