package sharedstorage

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
)

func (s *SharedStorageTestSuite) TestCleanupRemovesExpiredBroadcasts() {
	old, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "yesterday"})
	s.Require().NoError(err)

	s.advance(23 * time.Hour)
	recent, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "today"})
	s.Require().NoError(err)

	s.advance(2 * time.Hour)
	output := s.service.RunCleanup(s.ctx)

	s.Equal(&CleanupOutput{BroadcastsRemoved: 1}, output)

	broadcasts := s.service.GetBroadcasts(s.ctx)
	s.Require().Len(broadcasts, 1)
	s.Equal(recent.Broadcast.ID, broadcasts[0].ID)
	s.NotEqual(old.Broadcast.ID, broadcasts[0].ID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.cleanupRemoved.WithLabelValues("broadcasts")))
}

func (s *SharedStorageTestSuite) TestCleanupWritesEmptyListWhenEverythingExpired() {
	for i := 0; i < 3; i++ {
		_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "stale"})
		s.Require().NoError(err)
	}

	var notified [][]*models.Broadcast
	s.service.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		notified = append(notified, evt.Data.([]*models.Broadcast))
		return nil
	})

	s.advance(25 * time.Hour)
	output := s.service.RunCleanup(s.ctx)

	s.Equal(3, output.BroadcastsRemoved)
	s.JSONEq(`[]`, s.rawValue(BroadcastsKey))
	s.Empty(s.service.GetBroadcasts(s.ctx))

	s.Require().Len(notified, 1)
	s.Empty(notified[0])
}

func (s *SharedStorageTestSuite) TestCleanupSkipsWriteWhenNothingExpired() {
	_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "fresh"})
	s.Require().NoError(err)
	_, err = s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "fresh"})
	s.Require().NoError(err)

	broadcastWrites := testutil.ToFloat64(s.metrics.writes.WithLabelValues(BroadcastsKey))
	userWrites := testutil.ToFloat64(s.metrics.writes.WithLabelValues(UsersKey))
	calls := s.countEvents(EventAll)

	s.advance(time.Minute)
	output := s.service.RunCleanup(s.ctx)

	s.Equal(&CleanupOutput{}, output)
	s.Zero(*calls)
	s.Equal(broadcastWrites, testutil.ToFloat64(s.metrics.writes.WithLabelValues(BroadcastsKey)))
	s.Equal(userWrites, testutil.ToFloat64(s.metrics.writes.WithLabelValues(UsersKey)))
}

func (s *SharedStorageTestSuite) TestCleanupOnEmptyStoreWritesNothing() {
	output := s.service.RunCleanup(s.ctx)

	s.Equal(&CleanupOutput{}, output)

	_, err := s.store.Get(s.ctx, &kvstore.GetInput{Key: BroadcastsKey})
	s.ErrorIs(err, kvstore.ErrNotFound)
	_, err = s.store.Get(s.ctx, &kvstore.GetInput{Key: UsersKey})
	s.ErrorIs(err, kvstore.ErrNotFound)
}

func (s *SharedStorageTestSuite) TestCleanupRemovesStaleUsers() {
	stale, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "stale"})
	s.Require().NoError(err)

	s.advance(2 * time.Minute)
	active, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "active"})
	s.Require().NoError(err)

	s.advance(4 * time.Minute)
	output := s.service.RunCleanup(s.ctx)

	s.Equal(&CleanupOutput{UsersRemoved: 1}, output)

	users := s.service.GetUsers(s.ctx)
	s.Require().Len(users, 1)
	s.Equal(active.User.ID, users[0].ID)
	s.NotEqual(stale.User.ID, users[0].ID)
}

func (s *SharedStorageTestSuite) TestCleanupLoopRunsInBackground() {
	store := kvstore.NewMemory()
	defer store.Close()

	_, err := store.Set(s.ctx, &kvstore.SetInput{
		Key:   BroadcastsKey,
		Value: `[{"id":"broadcast_1","timestamp":"2025-04-17T12:00:00Z","read":false,"message":"old"}]`,
	})
	s.Require().NoError(err)

	svc, err := Open(s.ctx, &Config{
		Store:           store,
		Clock:           s.mockClock,
		UUID:            s.mockUUID,
		Origin:          "cleanup-origin",
		DisableWatch:    true,
		CleanupInterval: 10 * time.Millisecond,
	})
	s.Require().NoError(err)
	defer svc.Close()

	s.Eventually(func() bool {
		output, err := store.Get(s.ctx, &kvstore.GetInput{Key: BroadcastsKey})
		return err == nil && output.Value == "[]"
	}, 2*time.Second, 10*time.Millisecond)
}
