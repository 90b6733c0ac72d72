package cache

import (
	"context"
	"time"
)

// Store is the narrow key-value contract the read path depends on. The
// backing service serializes operations on a single key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopStore struct{}

func (NoopStore) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopStore) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (NoopStore) Delete(_ context.Context, _ string) error {
	return nil
}
