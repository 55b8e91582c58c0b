package kvstore

import (
	"context"
	"errors"
	"sync"

	"github.com/KirkDiggler/vipsync/internal/models"
)

const memoryWatchBuffer = 64

type memoryWatcher struct {
	origin  string
	changes chan *models.Change
}

// memoryStore keeps values in process memory. Every facade sharing one
// memoryStore behaves like a separate context sharing one backing store.
type memoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[*memoryWatcher]struct{}
	closed   bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *memoryStore {
	return &memoryStore{
		values:   make(map[string]string),
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

// Get retrieves a raw value
func (m *memoryStore) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[input.Key]
	if !ok {
		return nil, ErrNotFound
	}

	return &GetOutput{
		Value: value,
	}, nil
}

// Set stores a raw value and fans the change out to other origins' watchers.
// A watcher whose buffer is full misses the change.
func (m *memoryStore) Set(ctx context.Context, input *SetInput) (*SetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("store is closed")
	}

	previous, existed := m.values[input.Key]
	m.values[input.Key] = input.Value

	for watcher := range m.watchers {
		if watcher.origin != "" && watcher.origin == input.Origin {
			continue
		}

		change := &models.Change{
			Key:      input.Key,
			NewValue: input.Value,
			OldValue: previous,
			Origin:   input.Origin,
		}
		select {
		case watcher.changes <- change:
		default:
		}
	}

	return &SetOutput{
		Previous: previous,
		Existed:  existed,
	}, nil
}

// Watch registers a buffered watcher that lives until ctx is done
func (m *memoryStore) Watch(ctx context.Context, input *WatchInput) (*WatchOutput, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	watcher := &memoryWatcher{
		origin:  input.Origin,
		changes: make(chan *models.Change, memoryWatchBuffer),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("store is closed")
	}
	m.watchers[watcher] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.removeWatcher(watcher)
	}()

	return &WatchOutput{
		Changes: watcher.changes,
	}, nil
}

// Close closes every open watch feed
func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for watcher := range m.watchers {
		delete(m.watchers, watcher)
		close(watcher.changes)
	}
	return nil
}

func (m *memoryStore) removeWatcher(watcher *memoryWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Close may already have released it
	if _, ok := m.watchers[watcher]; !ok {
		return
	}
	delete(m.watchers, watcher)
	close(watcher.changes)
}
