package kvstore

import (
	"errors"

	"github.com/KirkDiggler/vipsync/internal/models"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("key not found")

// GetInput contains parameters for reading a key
type GetInput struct {
	Key string
}

// GetOutput contains the raw stored value
type GetOutput struct {
	Value string
}

// SetInput contains parameters for writing a key
type SetInput struct {
	// Key is the storage key
	Key string

	// Value is the raw (already encoded) value
	Value string

	// Origin identifies the writer; watchers with the same origin skip the change
	Origin string
}

// SetOutput contains the value that was replaced
type SetOutput struct {
	// Previous is the value before the write
	Previous string

	// Existed is false when the key was absent before the write
	Existed bool
}

// WatchInput contains parameters for watching changes
type WatchInput struct {
	// Origin is the watcher's own writer ID
	Origin string
}

// WatchOutput contains the change feed. The channel is closed when the watch
// context is cancelled or the store is closed.
type WatchOutput struct {
	Changes <-chan *models.Change
}
