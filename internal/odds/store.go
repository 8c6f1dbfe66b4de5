package odds

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"errors"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// ErrNotFound is returned by a Store when no distribution is cached for a key.
var ErrNotFound = errors.New("odds: distribution not found")

// Store caches computed distributions by key.
type Store interface {
	// Get returns the distribution cached under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*probability.Distribution, error)
	// Put caches d under key, replacing any previous entry.
	Put(ctx context.Context, key string, d *probability.Distribution) error
}

// NopStore caches nothing.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (*probability.Distribution, error) {
	return nil, ErrNotFound
}

func (NopStore) Put(context.Context, string, *probability.Distribution) error { return nil }
