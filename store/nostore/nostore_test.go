package nostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/nostore"
)

func TestAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	s := nostore.New()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, s.SetMany(ctx, []store.Entry{{Key: "k2", Value: []byte("v")}}))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, store.TTLMissing, ttl)

	for range s.ScanKeys(ctx, "*") {
		t.Fatal("nothing should be yielded")
	}
	require.NoError(t, s.RemoveByPattern(ctx, "*"))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Close(ctx))
}

func TestValidatesInput(t *testing.T) {
	ctx := context.Background()
	s := nostore.New()
	require.ErrorIs(t, s.Set(ctx, "", nil, 0), store.ErrInvalidKey)
	require.ErrorIs(t, s.RemoveByPattern(ctx, "[a"), store.ErrInvalidPattern)
}
