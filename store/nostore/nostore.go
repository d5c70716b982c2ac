// Package nostore is a store.Store that holds nothing: every read misses and
// every write is discarded. Useful to switch caching off without touching callers.
package nostore

import (
	"context"
	"iter"
	"time"

	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

type Store struct{}

var (
	_ store.Store       = Store{}
	_ store.MultiSetter = Store{}
)

func New() Store { return Store{} }

func (Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !util.ValidKey(key) {
		return nil, false, store.ErrInvalidKey
	}
	return nil, false, nil
}

func (Store) Set(_ context.Context, key string, _ []byte, _ time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return nil
}

func (Store) SetMany(context.Context, []store.Entry) error { return nil }

func (Store) Remove(_ context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	return nil
}

func (Store) RemoveByPattern(_ context.Context, pattern string) error {
	_, err := store.Compile(pattern)
	return err
}

func (Store) Clear(context.Context) error { return nil }

func (Store) Exists(_ context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	return false, nil
}

func (Store) TTL(_ context.Context, key string) (time.Duration, error) {
	if !util.ValidKey(key) {
		return 0, store.ErrInvalidKey
	}
	return store.TTLMissing, nil
}

func (Store) ScanKeys(_ context.Context, pattern string) iter.Seq2[string, error] {
	if _, err := store.Compile(pattern); err != nil {
		return store.ErrSeq(err)
	}
	return func(func(string, error) bool) {}
}

func (Store) Close(context.Context) error { return nil }
