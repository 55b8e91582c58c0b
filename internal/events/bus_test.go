package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type reportedError struct {
	event string
	err   error
}

type BusTestSuite struct {
	suite.Suite
	ctx      context.Context
	bus      *Bus
	reported []reportedError
}

func (s *BusTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.reported = nil
	s.bus = New(&Config{
		ErrorHandler: func(event string, err error) {
			s.reported = append(s.reported, reportedError{event: event, err: err})
		},
	})
}

func TestBusTestSuite(t *testing.T) {
	suite.Run(t, new(BusTestSuite))
}

func (s *BusTestSuite) record(calls *[]string, label string) Listener {
	return func(ctx context.Context, event Event) error {
		*calls = append(*calls, label+":"+event.Name)
		return nil
	}
}

func (s *BusTestSuite) TestPublishInRegistrationOrder() {
	var calls []string
	s.bus.Subscribe("settings", s.record(&calls, "first"))
	s.bus.Subscribe("settings", s.record(&calls, "second"))
	s.bus.Subscribe("settings", s.record(&calls, "third"))

	invoked := s.bus.Publish(s.ctx, "settings", nil)

	s.Equal(3, invoked)
	s.Equal([]string{"first:settings", "second:settings", "third:settings"}, calls)
}

func (s *BusTestSuite) TestPublishRoutesByName() {
	var calls []string
	s.bus.Subscribe("settings", s.record(&calls, "settings"))
	s.bus.Subscribe("broadcasts", s.record(&calls, "broadcasts"))
	s.bus.Subscribe(Wildcard, s.record(&calls, "all"))

	s.bus.Publish(s.ctx, "broadcasts", nil)
	s.Equal([]string{"broadcasts:broadcasts", "all:broadcasts"}, calls)

	calls = nil
	s.bus.Publish(s.ctx, "settings", nil)
	s.Equal([]string{"settings:settings", "all:settings"}, calls)
}

func (s *BusTestSuite) TestPublishPassesData() {
	var got Event
	s.bus.Subscribe("broadcasts", func(ctx context.Context, event Event) error {
		got = event
		return nil
	})

	s.bus.Publish(s.ctx, "broadcasts", []string{"hello"})

	s.Equal("broadcasts", got.Name)
	s.Equal([]string{"hello"}, got.Data)
}

func (s *BusTestSuite) TestUnsubscribeStopsDelivery() {
	var calls []string
	unsubscribe := s.bus.Subscribe("settings", s.record(&calls, "only"))

	s.bus.Publish(s.ctx, "settings", nil)
	unsubscribe()
	s.bus.Publish(s.ctx, "settings", nil)

	s.Equal([]string{"only:settings"}, calls)
	s.Equal(0, s.bus.Len())

	// calling it twice is harmless
	unsubscribe()
	s.Equal(0, s.bus.Len())
}

func (s *BusTestSuite) TestUnsubscribeDuringPublish() {
	var calls []string
	var unsubscribeSecond func()
	s.bus.Subscribe("settings", func(ctx context.Context, event Event) error {
		calls = append(calls, "first")
		unsubscribeSecond()
		return nil
	})
	unsubscribeSecond = s.bus.Subscribe("settings", s.record(&calls, "second"))

	invoked := s.bus.Publish(s.ctx, "settings", nil)

	s.Equal(1, invoked)
	s.Equal([]string{"first"}, calls)
}

func (s *BusTestSuite) TestUnsubscribeFromAnotherGoroutine() {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	unsubscribe := s.bus.Subscribe("broadcasts", func(ctx context.Context, event Event) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	done := make(chan int)
	go func() {
		done <- s.bus.Publish(s.ctx, "broadcasts", nil)
	}()
	<-entered

	// returns while the first invocation is still running
	unsubscribe()
	close(release)
	s.Equal(1, <-done)

	s.Zero(s.bus.Publish(s.ctx, "broadcasts", nil))
	s.Equal(int32(1), calls.Load())
}

func (s *BusTestSuite) TestListenerErrorIsIsolated() {
	var calls []string
	failure := errors.New("boom")
	s.bus.Subscribe("settings", func(ctx context.Context, event Event) error {
		return failure
	})
	s.bus.Subscribe("settings", s.record(&calls, "after"))

	invoked := s.bus.Publish(s.ctx, "settings", nil)

	s.Equal(2, invoked)
	s.Equal([]string{"after:settings"}, calls)
	s.Require().Len(s.reported, 1)
	s.Equal("settings", s.reported[0].event)
	s.ErrorIs(s.reported[0].err, failure)
}

func (s *BusTestSuite) TestListenerPanicIsIsolated() {
	var calls []string
	s.bus.Subscribe(Wildcard, func(ctx context.Context, event Event) error {
		panic("listener exploded")
	})
	s.bus.Subscribe("broadcasts", s.record(&calls, "after"))

	s.NotPanics(func() {
		s.bus.Publish(s.ctx, "broadcasts", nil)
	})

	s.Equal([]string{"after:broadcasts"}, calls)
	s.Require().Len(s.reported, 1)
	s.ErrorIs(s.reported[0].err, ErrListenerPanic)
	s.Contains(s.reported[0].err.Error(), "listener exploded")
}

func (s *BusTestSuite) TestNilConfigIgnoresErrors() {
	bus := New(nil)
	bus.Subscribe("settings", func(ctx context.Context, event Event) error {
		return errors.New("ignored")
	})

	s.NotPanics(func() {
		s.Equal(1, bus.Publish(s.ctx, "settings", nil))
	})
}
