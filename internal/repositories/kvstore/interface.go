package kvstore

//go:generate mockgen -package=mocks -destination=mocks/mock_store.go github.com/KirkDiggler/vipsync/internal/repositories/kvstore Store

import (
	"context"
)

// Store is a string key-value store shared by every process that opens it,
// with a change feed for writes made by other processes
type Store interface {
	// Get returns the raw value for a key, or ErrNotFound
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// Set writes a raw value and notifies watchers in other processes
	Set(ctx context.Context, input *SetInput) (*SetOutput, error)

	// Watch streams changes written by origins other than the caller's until
	// ctx is cancelled
	Watch(ctx context.Context, input *WatchInput) (*WatchOutput, error)

	// Close releases resources owned by the store
	Close() error
}
