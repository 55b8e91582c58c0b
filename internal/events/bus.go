package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Wildcard subscribes a listener to every event
const Wildcard = "*"

// ErrListenerPanic wraps a value recovered from a panicking listener
var ErrListenerPanic = errors.New("listener panicked")

// Event is what a listener receives
type Event struct {
	// Name is the event the data was published under
	Name string

	// Data is the decoded payload
	Data any
}

// Listener handles one event. A returned error is reported, never propagated.
type Listener func(ctx context.Context, event Event) error

// ErrorHandler receives listener failures
type ErrorHandler func(event string, err error)

// Config holds configuration for the bus
type Config struct {
	// ErrorHandler is called for every listener that returns an error or
	// panics. Optional.
	ErrorHandler ErrorHandler
}

type subscription struct {
	event    string
	listener Listener
	active   atomic.Bool
}

func (s *subscription) matches(event string) bool {
	return s.event == Wildcard || s.event == event
}

// Bus is a synchronous in-process publish/subscribe registry. Listeners run on
// the publisher's goroutine in registration order.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	onError ErrorHandler
}

// New creates a new bus
func New(cfg *Config) *Bus {
	bus := &Bus{}
	if cfg != nil {
		bus.onError = cfg.ErrorHandler
	}
	return bus
}

// Subscribe registers listener for event and returns a func that removes it.
// No invocation of the listener starts after the returned func has returned;
// one already running on another goroutine may still finish.
func (b *Bus) Subscribe(event string, listener Listener) func() {
	sub := &subscription{
		event:    event,
		listener: listener,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)

			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool {
				return s == sub
			})
		})
	}
}

// Publish delivers data to every listener registered for name or the
// wildcard, and returns how many listeners were invoked
func (b *Bus) Publish(ctx context.Context, name string, data any) int {
	b.mu.RLock()
	snapshot := slices.Clone(b.subs)
	b.mu.RUnlock()

	event := Event{
		Name: name,
		Data: data,
	}

	invoked := 0
	for _, sub := range snapshot {
		// listeners may unsubscribe others mid-publish
		if !sub.matches(name) || !sub.active.Load() {
			continue
		}

		invoked++
		if err := invoke(ctx, sub.listener, event); err != nil && b.onError != nil {
			b.onError(name, err)
		}
	}

	return invoked
}

// Len returns the number of registered listeners
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func invoke(ctx context.Context, listener Listener, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()

	return listener(ctx, event)
}
