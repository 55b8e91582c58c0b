package sharedstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	clockMocks "github.com/KirkDiggler/vipsync/internal/common/clock/mocks"
	uuidMocks "github.com/KirkDiggler/vipsync/internal/common/uuid/mocks"
	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
	storeMocks "github.com/KirkDiggler/vipsync/internal/repositories/kvstore/mocks"
)

type listenerFailure struct {
	event string
	err   error
}

type SharedStorageTestSuite struct {
	suite.Suite
	mockCtrl  *gomock.Controller
	mockClock *clockMocks.MockClock
	mockUUID  *uuidMocks.MockUUID
	store     kvstore.Store
	metrics   *Metrics
	service   *service
	ctx       context.Context

	// Test data
	testTime  time.Time
	now       time.Time
	idCounter int
	failures  []listenerFailure
}

func (s *SharedStorageTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockClock = clockMocks.NewMockClock(s.mockCtrl)
	s.mockUUID = uuidMocks.NewMockUUID(s.mockCtrl)
	s.ctx = context.Background()

	s.testTime = time.Date(2025, 4, 19, 12, 0, 0, 0, time.UTC)
	s.now = s.testTime
	s.idCounter = 0
	s.failures = nil

	// The clock returns whatever the test has advanced it to
	s.mockClock.EXPECT().Now().DoAndReturn(func() time.Time {
		return s.now
	}).AnyTimes()

	s.mockUUID.EXPECT().NewUUID().DoAndReturn(func() string {
		s.idCounter++
		return fmt.Sprintf("%08d-aaaa-bbbb", s.idCounter)
	}).AnyTimes()

	metrics, err := NewMetrics(prometheus.NewRegistry())
	s.Require().NoError(err)
	s.metrics = metrics

	s.store = kvstore.NewMemory()
	s.service = s.open("test-origin", s.store)
}

func (s *SharedStorageTestSuite) TearDownTest() {
	s.Require().NoError(s.service.Close())
	s.Require().NoError(s.store.Close())
}

func TestSharedStorageTestSuite(t *testing.T) {
	suite.Run(t, new(SharedStorageTestSuite))
}

func (s *SharedStorageTestSuite) open(origin string, store kvstore.Store) *service {
	svc, err := Open(s.ctx, &Config{
		Store:   store,
		Clock:   s.mockClock,
		UUID:    s.mockUUID,
		Metrics: s.metrics,
		Origin:  origin,
		ErrorHandler: func(event string, err error) {
			s.failures = append(s.failures, listenerFailure{event: event, err: err})
		},
		CleanupInterval: -1,
	})
	s.Require().NoError(err)
	return svc
}

func (s *SharedStorageTestSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *SharedStorageTestSuite) rawValue(key string) string {
	output, err := s.store.Get(s.ctx, &kvstore.GetInput{Key: key})
	s.Require().NoError(err)
	return output.Value
}

func (s *SharedStorageTestSuite) countEvents(event string) *int {
	count := new(int)
	s.service.AddListener(event, func(ctx context.Context, evt events.Event) error {
		*count++
		return nil
	})
	return count
}

func (s *SharedStorageTestSuite) TestOpenValidatesConfig() {
	_, err := Open(s.ctx, nil)
	s.ErrorIs(err, ErrNilConfig)

	_, err = Open(s.ctx, &Config{})
	s.ErrorIs(err, ErrNilStore)
}

func (s *SharedStorageTestSuite) TestOpenFailsWhenWatchFails() {
	mockStore := storeMocks.NewMockStore(s.mockCtrl)
	mockStore.EXPECT().Watch(gomock.Any(), &kvstore.WatchInput{Origin: "watch-origin"}).Return(nil, errors.New("subscribe refused"))

	_, err := Open(s.ctx, &Config{
		Store:           mockStore,
		Clock:           s.mockClock,
		UUID:            s.mockUUID,
		Origin:          "watch-origin",
		CleanupInterval: -1,
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "subscribe refused")
}

func (s *SharedStorageTestSuite) TestSetThenGetRoundTrip() {
	values := map[string]any{
		"object": map[string]any{"a": 1.0, "b": []any{"x", true, nil}},
		"array":  []any{1.5, "two"},
		"string": "hello",
		"number": 42.0,
		"bool":   false,
		"empty":  []any{},
	}

	for key, value := range values {
		s.Require().True(s.service.Set(s.ctx, key, value), key)

		var got any
		s.Require().True(s.service.Get(s.ctx, key, &got), key)
		s.Equal(value, got, key)
	}
}

func (s *SharedStorageTestSuite) TestGetMissingKey() {
	var got map[string]any
	s.False(s.service.Get(s.ctx, "missing", &got))
	s.Nil(got)
}

func (s *SharedStorageTestSuite) TestGetMalformedValue() {
	_, err := s.store.Set(s.ctx, &kvstore.SetInput{Key: "broken", Value: "{not json"})
	s.Require().NoError(err)

	var got map[string]any
	s.False(s.service.Get(s.ctx, "broken", &got))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.decodeFailures.WithLabelValues("broken")))
}

func (s *SharedStorageTestSuite) TestMalformedStoredListsReadAsEmpty() {
	_, err := s.store.Set(s.ctx, &kvstore.SetInput{Key: BroadcastsKey, Value: "oops"})
	s.Require().NoError(err)

	s.Empty(s.service.GetBroadcasts(s.ctx))
	s.Empty(s.service.GetUnreadBroadcasts(s.ctx))

	output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "recovered"})
	s.Require().NoError(err)
	s.Equal([]*models.Broadcast{output.Broadcast}, s.service.GetBroadcasts(s.ctx))
}

func (s *SharedStorageTestSuite) TestSetUnencodableValue() {
	s.False(s.service.Set(s.ctx, "channel", make(chan int)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.writeFailures.WithLabelValues("channel")))

	_, err := s.store.Get(s.ctx, &kvstore.GetInput{Key: "channel"})
	s.ErrorIs(err, kvstore.ErrNotFound)
}

func (s *SharedStorageTestSuite) TestStoreWriteFailure() {
	mockStore := storeMocks.NewMockStore(s.mockCtrl)
	svc, err := Open(s.ctx, &Config{
		Store:           mockStore,
		Clock:           s.mockClock,
		UUID:            s.mockUUID,
		Origin:          "failing-origin",
		DisableWatch:    true,
		CleanupInterval: -1,
	})
	s.Require().NoError(err)
	defer svc.Close()

	quota := errors.New("quota exceeded")
	mockStore.EXPECT().Get(gomock.Any(), &kvstore.GetInput{Key: SettingsKey}).Return(nil, kvstore.ErrNotFound)
	mockStore.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil, quota).Times(2)

	notified := 0
	svc.AddListener(EventAll, func(ctx context.Context, evt events.Event) error {
		notified++
		return nil
	})

	s.False(svc.Set(s.ctx, "anything", map[string]int{"a": 1}))

	output, err := svc.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPG,
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(70)},
	})
	s.ErrorIs(err, ErrWriteFailed)
	s.Require().NotNil(output)
	s.Equal(70, output.Settings.Games[models.GameIDPG].BaseWin)
	s.Zero(notified)
}

func (s *SharedStorageTestSuite) TestUpdateSettingsMergesOneField() {
	s.Require().True(s.service.Set(s.ctx, SettingsKey, models.DefaultSettings(s.now)))
	before := s.now
	s.advance(time.Minute)

	output, err := s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPG,
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(70)},
	})
	s.Require().NoError(err)

	var stored models.Settings
	s.Require().True(s.service.Get(s.ctx, SettingsKey, &stored))

	pg := stored.Games[models.GameIDPG]
	s.Equal(70, pg.BaseWin)
	s.Equal(25, pg.BonusChance)
	s.Require().NotNil(pg.Randomness)
	s.Equal(15, *pg.Randomness)

	pp := stored.Games[models.GameIDPP]
	s.Equal(60, pp.BaseWin)
	s.Equal(22, pp.BonusChance)
	s.Require().NotNil(pp.Volatility)
	s.Equal(25, *pp.Volatility)

	s.True(stored.LastUpdated.After(before))
	s.Equal(models.SettingsVersion, stored.Version)
	s.Equal(&stored, output.Settings)
}

func (s *SharedStorageTestSuite) TestUpdateSettingsKeepsUnknownGamesAndFields() {
	_, err := s.store.Set(s.ctx, &kvstore.SetInput{
		Key:   SettingsKey,
		Value: `{"version":"2.0.0","lastUpdated":"2025-04-19T11:00:00Z","pg":{"baseWin":65,"bonusChance":25,"randomness":15},"pp":{"baseWin":"60"},"jili":{"baseWin":50,"bonusChance":10},"updatedBy":"admin"}`,
	})
	s.Require().NoError(err)

	_, err = s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPG,
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(70)},
	})
	s.Require().NoError(err)

	s.JSONEq(`{
		"version": "2.0.0",
		"lastUpdated": "2025-04-19T12:00:00Z",
		"pg": {"baseWin": 70, "bonusChance": 25, "randomness": 15},
		"pp": {"baseWin": "60"},
		"jili": {"baseWin": 50, "bonusChance": 10},
		"updatedBy": "admin"
	}`, s.rawValue(SettingsKey))
}

func (s *SharedStorageTestSuite) TestUpdateSettingsStartsFromDefaults() {
	output, err := s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPP,
		Update: &models.GameSettingsUpdate{Volatility: models.Int(40)},
	})
	s.Require().NoError(err)

	s.Equal(40, *output.Settings.Games[models.GameIDPP].Volatility)
	s.Equal(60, output.Settings.Games[models.GameIDPP].BaseWin)
	s.Equal(65, output.Settings.Games[models.GameIDPG].BaseWin)
}

func (s *SharedStorageTestSuite) TestUpdateSettingsAddsNewGame() {
	output, err := s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: "jili",
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(55), BonusChance: models.Int(10)},
	})
	s.Require().NoError(err)

	s.Equal(models.GameSettings{BaseWin: 55, BonusChance: 10}, output.Settings.Games["jili"])
	s.Len(s.service.GetSettings(s.ctx).Games, 3)
}

func (s *SharedStorageTestSuite) TestUpdateSettingsValidatesInput() {
	_, err := s.service.UpdateSettings(s.ctx, nil)
	s.ErrorIs(err, ErrNilInput)

	_, err = s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{})
	s.ErrorIs(err, ErrEmptyGameID)

	_, err = s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{GameID: "lastUpdated"})
	s.ErrorIs(err, ErrReservedGameID)
}

func (s *SharedStorageTestSuite) TestGetSettingsDefaults() {
	settings := s.service.GetSettings(s.ctx)

	s.Equal(models.DefaultSettings(s.now), settings)
}

func (s *SharedStorageTestSuite) TestSendBroadcast() {
	output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{
		Title:   "Bonus time",
		Message: "PG bonus rate doubled",
		Type:    models.BroadcastTypePromo,
		Sender:  "admin",
		Meta:    map[string]string{"site": "SOZA"},
	})
	s.Require().NoError(err)

	broadcast := output.Broadcast
	s.Equal("broadcast_1745064000000_00000001", broadcast.ID)
	s.Equal(s.testTime, broadcast.Timestamp)
	s.False(broadcast.Read)
	s.Equal("PG bonus rate doubled", broadcast.Message)

	s.Equal([]*models.Broadcast{broadcast}, s.service.GetBroadcasts(s.ctx))
}

func (s *SharedStorageTestSuite) TestSendBroadcastKeepsNewestTwenty() {
	for i := 0; i < 25; i++ {
		_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{
			Message: fmt.Sprintf("msg-%d", i),
		})
		s.Require().NoError(err)
		s.advance(time.Second)
	}

	var stored []*models.Broadcast
	s.Require().True(s.service.Get(s.ctx, BroadcastsKey, &stored))
	s.Require().Len(stored, 20)

	for i, broadcast := range stored {
		s.Equal(fmt.Sprintf("msg-%d", 24-i), broadcast.Message)
	}

	ids := make(map[string]struct{}, len(stored))
	for _, broadcast := range stored {
		ids[broadcast.ID] = struct{}{}
	}
	s.Len(ids, 20)
}

func (s *SharedStorageTestSuite) TestSendBroadcastValidatesInput() {
	_, err := s.service.SendBroadcast(s.ctx, nil)
	s.ErrorIs(err, ErrNilInput)
}

func (s *SharedStorageTestSuite) TestMarkBroadcastAsRead() {
	var sent []*models.Broadcast
	for i := 0; i < 3; i++ {
		output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: fmt.Sprintf("msg-%d", i)})
		s.Require().NoError(err)
		sent = append(sent, output.Broadcast)
	}

	err := s.service.MarkBroadcastAsRead(s.ctx, &MarkBroadcastAsReadInput{BroadcastID: sent[1].ID})
	s.Require().NoError(err)

	for _, broadcast := range s.service.GetBroadcasts(s.ctx) {
		s.Equal(broadcast.ID == sent[1].ID, broadcast.Read, broadcast.ID)
	}

	unread := s.service.GetUnreadBroadcasts(s.ctx)
	s.Require().Len(unread, 2)
	s.Equal(sent[2].ID, unread[0].ID)
	s.Equal(sent[0].ID, unread[1].ID)
}

func (s *SharedStorageTestSuite) TestMarkUnknownBroadcastLeavesListUnchanged() {
	_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "only"})
	s.Require().NoError(err)
	before := s.rawValue(BroadcastsKey)

	err = s.service.MarkBroadcastAsRead(s.ctx, &MarkBroadcastAsReadInput{BroadcastID: "broadcast_missing"})
	s.Require().NoError(err)

	s.JSONEq(before, s.rawValue(BroadcastsKey))
}

func (s *SharedStorageTestSuite) TestMarkBroadcastAsReadValidatesInput() {
	s.ErrorIs(s.service.MarkBroadcastAsRead(s.ctx, nil), ErrNilInput)
	s.ErrorIs(s.service.MarkBroadcastAsRead(s.ctx, &MarkBroadcastAsReadInput{}), ErrEmptyID)
}

func (s *SharedStorageTestSuite) TestGetUnreadBroadcastsDoesNotWrite() {
	_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "hello"})
	s.Require().NoError(err)
	writes := testutil.ToFloat64(s.metrics.writes.WithLabelValues(BroadcastsKey))

	s.Len(s.service.GetUnreadBroadcasts(s.ctx), 1)
	s.Equal(writes, testutil.ToFloat64(s.metrics.writes.WithLabelValues(BroadcastsKey)))
}

func (s *SharedStorageTestSuite) TestRegisterUser() {
	output, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{
		Name: "Somchai",
		Page: "user.html",
	})
	s.Require().NoError(err)

	user := output.User
	s.Equal("user_1745064000000_00000001", user.ID)
	s.Equal(s.testTime, user.LastSeen)
	s.True(user.Active)
	s.Equal(models.UserRoleUser, user.Role)

	s.Equal([]*models.User{user}, s.service.GetUsers(s.ctx))
}

func (s *SharedStorageTestSuite) TestRegisterUserEvictsStaleUsers() {
	stale, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "stale"})
	s.Require().NoError(err)

	s.advance(3 * time.Minute)
	recent, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "recent"})
	s.Require().NoError(err)

	// stale is now six minutes old, recent three
	s.advance(3 * time.Minute)
	fresh, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "fresh", Role: models.UserRoleAdmin})
	s.Require().NoError(err)

	users := s.service.GetUsers(s.ctx)
	s.Require().Len(users, 2)
	s.Equal(recent.User.ID, users[0].ID)
	s.Equal(fresh.User.ID, users[1].ID)
	for _, user := range users {
		s.NotEqual(stale.User.ID, user.ID)
	}
}

func (s *SharedStorageTestSuite) TestUpdateUserActivity() {
	first, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "first"})
	s.Require().NoError(err)
	second, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "second"})
	s.Require().NoError(err)

	s.advance(4 * time.Minute)
	err = s.service.UpdateUserActivity(s.ctx, &UpdateUserActivityInput{UserID: first.User.ID})
	s.Require().NoError(err)

	users := s.service.GetUsers(s.ctx)
	s.Require().Len(users, 2)
	s.Equal(s.now, users[0].LastSeen)
	s.Equal(s.testTime, users[1].LastSeen)

	// only the refreshed user is still active two minutes later
	s.advance(2 * time.Minute)
	active := s.service.GetActiveUsers(s.ctx)
	s.Require().Len(active, 1)
	s.Equal(first.User.ID, active[0].ID)
	s.NotEqual(second.User.ID, active[0].ID)
}

func (s *SharedStorageTestSuite) TestUpdateUnknownUserLeavesListUnchanged() {
	_, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "only"})
	s.Require().NoError(err)
	before := s.rawValue(UsersKey)

	s.advance(time.Minute)
	err = s.service.UpdateUserActivity(s.ctx, &UpdateUserActivityInput{UserID: "user_missing"})
	s.Require().NoError(err)

	s.JSONEq(before, s.rawValue(UsersKey))
}

func (s *SharedStorageTestSuite) TestUpdateUserActivityValidatesInput() {
	s.ErrorIs(s.service.UpdateUserActivity(s.ctx, nil), ErrNilInput)
	s.ErrorIs(s.service.UpdateUserActivity(s.ctx, &UpdateUserActivityInput{}), ErrEmptyID)
}

func (s *SharedStorageTestSuite) TestBroadcastListenerReceivesListSynchronously() {
	var received [][]*models.Broadcast
	s.service.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		list, ok := evt.Data.([]*models.Broadcast)
		s.Require().True(ok)
		received = append(received, list)
		return nil
	})
	settingsCalls := s.countEvents(EventSettings)
	allCalls := s.countEvents(EventAll)

	output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "hello"})
	s.Require().NoError(err)

	// delivered before SendBroadcast returned
	s.Require().Len(received, 1)
	s.Equal([]*models.Broadcast{output.Broadcast}, received[0])
	s.Zero(*settingsCalls)
	s.Equal(1, *allCalls)

	_, err = s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPG,
		Update: &models.GameSettingsUpdate{BonusChance: models.Int(30)},
	})
	s.Require().NoError(err)

	s.Len(received, 1)
	s.Equal(1, *settingsCalls)
	s.Equal(2, *allCalls)
	// the settings listener and the wildcard listener
	s.Equal(2.0, testutil.ToFloat64(s.metrics.notifications.WithLabelValues(EventSettings)))
}

func (s *SharedStorageTestSuite) TestSettingsListenerReceivesDecodedSettings() {
	var received *models.Settings
	s.service.AddListener(EventSettings, func(ctx context.Context, evt events.Event) error {
		received = evt.Data.(*models.Settings)
		return nil
	})

	_, err := s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPP,
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(75)},
	})
	s.Require().NoError(err)

	s.Require().NotNil(received)
	s.Equal(75, received.Games[models.GameIDPP].BaseWin)
}

func (s *SharedStorageTestSuite) TestUserWritesAreNotRouted() {
	allCalls := s.countEvents(EventAll)

	_, err := s.service.RegisterUser(s.ctx, &RegisterUserInput{Name: "quiet"})
	s.Require().NoError(err)

	s.Zero(*allCalls)
}

func (s *SharedStorageTestSuite) TestUnsubscribeStopsNotifications() {
	calls := 0
	unsubscribe := s.service.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		calls++
		return nil
	})

	_, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "one"})
	s.Require().NoError(err)
	unsubscribe()
	_, err = s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "two"})
	s.Require().NoError(err)

	s.Equal(1, calls)
}

func (s *SharedStorageTestSuite) TestFailingListenerDoesNotBlockOthers() {
	failure := errors.New("render failed")
	s.service.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		return failure
	})
	s.service.AddListener(EventAll, func(ctx context.Context, evt events.Event) error {
		panic("bad listener")
	})
	calls := s.countEvents(EventBroadcasts)

	output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "still delivered"})
	s.Require().NoError(err)
	s.NotNil(output.Broadcast)

	s.Equal(1, *calls)
	s.Require().Len(s.failures, 2)
	s.ErrorIs(s.failures[0].err, failure)
	s.ErrorIs(s.failures[1].err, events.ErrListenerPanic)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.listenerFailures.WithLabelValues(EventBroadcasts)))
}

func (s *SharedStorageTestSuite) TestNotifyListeners() {
	var got events.Event
	s.service.AddListener("custom", func(ctx context.Context, evt events.Event) error {
		got = evt
		return nil
	})

	s.service.NotifyListeners(s.ctx, "custom", "payload")

	s.Equal(events.Event{Name: "custom", Data: "payload"}, got)
}

func (s *SharedStorageTestSuite) TestChangesFromOtherInstancesAreRepublished() {
	other := s.open("other-origin", s.store)
	defer other.Close()

	remote := make(chan []*models.Broadcast, 1)
	other.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		remote <- evt.Data.([]*models.Broadcast)
		return nil
	})
	localCalls := 0
	s.service.AddListener(EventBroadcasts, func(ctx context.Context, evt events.Event) error {
		localCalls++
		return nil
	})

	output, err := s.service.SendBroadcast(s.ctx, &SendBroadcastInput{Message: "cross"})
	s.Require().NoError(err)

	select {
	case list := <-remote:
		s.Require().Len(list, 1)
		s.Equal(output.Broadcast.ID, list[0].ID)
	case <-time.After(2 * time.Second):
		s.FailNow("remote listener was not notified")
	}

	// the writer never hears its own change back from the store
	s.Never(func() bool {
		return localCalls != 1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func (s *SharedStorageTestSuite) TestRoundTripPreservesStoredJSONLayout() {
	_, err := s.service.UpdateSettings(s.ctx, &UpdateSettingsInput{
		GameID: models.GameIDPG,
		Update: &models.GameSettingsUpdate{BaseWin: models.Int(70)},
	})
	s.Require().NoError(err)

	var doc map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal([]byte(s.rawValue(SettingsKey)), &doc))
	s.Contains(doc, "version")
	s.Contains(doc, "lastUpdated")
	s.Contains(doc, models.GameIDPG)
	s.Contains(doc, models.GameIDPP)
}
