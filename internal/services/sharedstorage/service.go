package sharedstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/clock"
	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/common/uuid"
	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
)

const (
	broadcastIDPrefix = "broadcast"
	userIDPrefix      = "user"
)

// service implements the Service interface
type service struct {
	store        kvstore.Store
	clock        clock.Clock
	uuid         uuid.UUID
	logger       *zap.Logger
	bus          *events.Bus
	metrics      *Metrics
	errorHandler events.ErrorHandler
	origin       string

	cleanupInterval time.Duration
	broadcastLimit  int
	broadcastTTL    time.Duration
	userTTL         time.Duration

	// mu serializes this instance's read-modify-write sequences. Writers in
	// other processes can still interleave; the last write wins.
	mu sync.Mutex

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open creates the shared storage service, subscribes to changes made by other
// processes and starts the cleanup loop. Both stop when ctx is cancelled or
// Close is called.
func Open(ctx context.Context, cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if cfg.Store == nil {
		return nil, ErrNilStore
	}

	s := &service{
		store:           cfg.Store,
		clock:           cfg.Clock,
		uuid:            cfg.UUID,
		logger:          logging.OrNop(cfg.Logger),
		metrics:         cfg.Metrics,
		errorHandler:    cfg.ErrorHandler,
		origin:          cfg.Origin,
		cleanupInterval: cfg.CleanupInterval,
		broadcastLimit:  cfg.BroadcastLimit,
		broadcastTTL:    cfg.BroadcastTTL,
		userTTL:         cfg.UserTTL,
	}

	// Set default values if not provided
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.uuid == nil {
		s.uuid = uuid.New()
	}
	if s.origin == "" {
		s.origin = s.uuid.NewUUID()
	}
	if s.errorHandler == nil {
		s.errorHandler = s.logListenerError
	}
	if s.cleanupInterval == 0 {
		s.cleanupInterval = DefaultCleanupInterval
	}
	if s.broadcastLimit <= 0 {
		s.broadcastLimit = DefaultBroadcastLimit
	}
	if s.broadcastTTL <= 0 {
		s.broadcastTTL = DefaultBroadcastTTL
	}
	if s.userTTL <= 0 {
		s.userTTL = DefaultUserTTL
	}

	s.bus = events.New(&events.Config{
		ErrorHandler: s.handleListenerError,
	})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if !cfg.DisableWatch {
		output, err := s.store.Watch(runCtx, &kvstore.WatchInput{
			Origin: s.origin,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to watch shared storage: %w", err)
		}

		s.wg.Add(1)
		go s.forwardChanges(runCtx, output.Changes)
	}

	if s.cleanupInterval > 0 {
		s.wg.Add(1)
		go s.runCleanupLoop(runCtx)
	}

	s.logger.Info("shared storage opened",
		zap.String("origin", s.origin),
		zap.Bool("watch", !cfg.DisableWatch),
		zap.Duration("cleanup_interval", s.cleanupInterval))

	return s, nil
}

// Close stops the watcher and cleanup loop and waits for them to exit. The
// store itself is left open.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Info("shared storage closed", zap.String("origin", s.origin))
	})
	return nil
}

// Get decodes the value stored under key into dst
func (s *service) Get(ctx context.Context, key string, dst any) bool {
	output, err := s.store.Get(ctx, &kvstore.GetInput{
		Key: key,
	})
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Debug("storage key not set", zap.String("key", key))
			return false
		}
		s.logger.Error("storage get failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal([]byte(output.Value), dst); err != nil {
		s.metrics.incDecodeFailure(key)
		s.logger.Error("storage value could not be decoded", zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

// Set stores value under key and notifies listeners in this process
func (s *service) Set(ctx context.Context, key string, value any) bool {
	change, ok := s.write(ctx, key, value)
	if !ok {
		return false
	}

	s.publishChange(ctx, change)
	return true
}

// GetSettings returns the stored settings or the defaults
func (s *service) GetSettings(ctx context.Context) *models.Settings {
	return s.loadSettings(ctx)
}

// UpdateSettings merges input.Update into one game's settings
func (s *service) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	if input.GameID == "" {
		return nil, ErrEmptyGameID
	}

	if models.IsReservedGameID(input.GameID) {
		return nil, ErrReservedGameID
	}

	s.mu.Lock()
	settings := s.loadSettings(ctx)
	settings.Games[input.GameID] = settings.Games[input.GameID].Merge(input.Update)
	settings.LastUpdated = s.clock.Now()
	change, ok := s.write(ctx, SettingsKey, settings)
	s.mu.Unlock()

	output := &UpdateSettingsOutput{
		Settings: settings,
	}
	if !ok {
		return output, ErrWriteFailed
	}

	s.publishChange(ctx, change)
	return output, nil
}

// SendBroadcast creates a broadcast and stores it at the head of the list
func (s *service) SendBroadcast(ctx context.Context, input *SendBroadcastInput) (*SendBroadcastOutput, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	now := s.clock.Now()
	broadcast := &models.Broadcast{
		ID:        uuid.PrefixedID(s.uuid, broadcastIDPrefix, now),
		Timestamp: now,
		Read:      false,
		Title:     input.Title,
		Message:   input.Message,
		Type:      input.Type,
		Sender:    input.Sender,
		Meta:      maps.Clone(input.Meta),
	}

	s.mu.Lock()
	broadcasts := append([]*models.Broadcast{broadcast}, s.loadBroadcasts(ctx)...)
	if len(broadcasts) > s.broadcastLimit {
		broadcasts = broadcasts[:s.broadcastLimit]
	}
	change, ok := s.write(ctx, BroadcastsKey, broadcasts)
	s.mu.Unlock()

	output := &SendBroadcastOutput{
		Broadcast: broadcast,
	}
	if !ok {
		return output, ErrWriteFailed
	}

	s.publishChange(ctx, change)
	return output, nil
}

// GetBroadcasts returns the stored broadcasts, newest first
func (s *service) GetBroadcasts(ctx context.Context) []*models.Broadcast {
	return s.loadBroadcasts(ctx)
}

// GetUnreadBroadcasts returns the broadcasts that are not read yet
func (s *service) GetUnreadBroadcasts(ctx context.Context) []*models.Broadcast {
	unread := []*models.Broadcast{}
	for _, broadcast := range s.loadBroadcasts(ctx) {
		if !broadcast.Read {
			unread = append(unread, broadcast)
		}
	}
	return unread
}

// MarkBroadcastAsRead flags the broadcast with the given ID as read. The list
// is rewritten even when no broadcast matches.
func (s *service) MarkBroadcastAsRead(ctx context.Context, input *MarkBroadcastAsReadInput) error {
	if input == nil {
		return ErrNilInput
	}

	if input.BroadcastID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	broadcasts := s.loadBroadcasts(ctx)
	for _, broadcast := range broadcasts {
		if broadcast.ID == input.BroadcastID {
			broadcast.Read = true
		}
	}
	change, ok := s.write(ctx, BroadcastsKey, broadcasts)
	s.mu.Unlock()

	if !ok {
		return ErrWriteFailed
	}

	s.publishChange(ctx, change)
	return nil
}

// RegisterUser evicts stale users and appends a new one
func (s *service) RegisterUser(ctx context.Context, input *RegisterUserInput) (*RegisterUserOutput, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	role := input.Role
	if role == "" {
		role = models.UserRoleUser
	}

	now := s.clock.Now()
	user := &models.User{
		ID:       uuid.PrefixedID(s.uuid, userIDPrefix, now),
		LastSeen: now,
		Active:   true,
		Name:     input.Name,
		Role:     role,
		Page:     input.Page,
		Meta:     maps.Clone(input.Meta),
	}

	s.mu.Lock()
	users := append(s.freshUsers(s.loadUsers(ctx), now), user)
	change, ok := s.write(ctx, UsersKey, users)
	s.mu.Unlock()

	output := &RegisterUserOutput{
		User: user,
	}
	if !ok {
		return output, ErrWriteFailed
	}

	s.publishChange(ctx, change)
	return output, nil
}

// UpdateUserActivity sets the user's last-seen time to now
func (s *service) UpdateUserActivity(ctx context.Context, input *UpdateUserActivityInput) error {
	if input == nil {
		return ErrNilInput
	}

	if input.UserID == "" {
		return ErrEmptyID
	}

	now := s.clock.Now()

	s.mu.Lock()
	users := s.loadUsers(ctx)
	for _, user := range users {
		if user.ID == input.UserID {
			user.LastSeen = now
		}
	}
	change, ok := s.write(ctx, UsersKey, users)
	s.mu.Unlock()

	if !ok {
		return ErrWriteFailed
	}

	s.publishChange(ctx, change)
	return nil
}

// GetUsers returns every stored user
func (s *service) GetUsers(ctx context.Context) []*models.User {
	return s.loadUsers(ctx)
}

// GetActiveUsers returns the users seen within the user TTL
func (s *service) GetActiveUsers(ctx context.Context) []*models.User {
	return s.freshUsers(s.loadUsers(ctx), s.clock.Now())
}

// AddListener subscribes listener to event ("settings", "broadcasts" or "*")
func (s *service) AddListener(event string, listener events.Listener) func() {
	return s.bus.Subscribe(event, listener)
}

// NotifyListeners synchronously invokes the listeners registered for event
func (s *service) NotifyListeners(ctx context.Context, event string, data any) {
	invoked := s.bus.Publish(ctx, event, data)
	s.metrics.addNotifications(event, invoked)
}

// write encodes and stores value without notifying anyone
func (s *service) write(ctx context.Context, key string, value any) (*models.Change, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.metrics.incWriteFailure(key)
		s.logger.Error("storage value could not be encoded", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	output, err := s.store.Set(ctx, &kvstore.SetInput{
		Key:    key,
		Value:  string(raw),
		Origin: s.origin,
	})
	if err != nil {
		s.metrics.incWriteFailure(key)
		s.logger.Error("storage set failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	s.metrics.incWrite(key)

	return &models.Change{
		Key:      key,
		NewValue: string(raw),
		OldValue: output.Previous,
		Origin:   s.origin,
	}, true
}

// publishChange decodes a change to a routed key and publishes it on the bus.
// Local writes and changes from other processes both end up here.
func (s *service) publishChange(ctx context.Context, change *models.Change) {
	switch change.Key {
	case SettingsKey:
		var settings models.Settings
		if err := json.Unmarshal([]byte(change.NewValue), &settings); err != nil {
			s.metrics.incDecodeFailure(change.Key)
			s.logger.Error("changed settings could not be decoded", zap.String("origin", change.Origin), zap.Error(err))
			return
		}
		s.NotifyListeners(ctx, EventSettings, &settings)

	case BroadcastsKey:
		var broadcasts []*models.Broadcast
		if err := json.Unmarshal([]byte(change.NewValue), &broadcasts); err != nil {
			s.metrics.incDecodeFailure(change.Key)
			s.logger.Error("changed broadcasts could not be decoded", zap.String("origin", change.Origin), zap.Error(err))
			return
		}
		s.NotifyListeners(ctx, EventBroadcasts, broadcasts)
	}
}

func (s *service) forwardChanges(ctx context.Context, changes <-chan *models.Change) {
	defer s.wg.Done()

	for change := range changes {
		s.logger.Debug("received change",
			zap.String("key", change.Key),
			zap.String("origin", change.Origin))
		s.publishChange(ctx, change)
	}
}

func (s *service) handleListenerError(event string, err error) {
	s.metrics.incListenerFailure(event)
	s.errorHandler(event, err)
}

func (s *service) logListenerError(event string, err error) {
	s.logger.Error("listener failed", zap.String("event", event), zap.Error(err))
}

func (s *service) loadSettings(ctx context.Context) *models.Settings {
	var settings models.Settings
	if !s.Get(ctx, SettingsKey, &settings) || (settings.Version == "" && len(settings.Games) == 0 && len(settings.Extra) == 0) {
		return models.DefaultSettings(s.clock.Now())
	}
	return &settings
}

func (s *service) loadBroadcasts(ctx context.Context) []*models.Broadcast {
	var stored []*models.Broadcast
	s.Get(ctx, BroadcastsKey, &stored)

	broadcasts := make([]*models.Broadcast, 0, len(stored))
	for _, broadcast := range stored {
		if broadcast != nil {
			broadcasts = append(broadcasts, broadcast)
		}
	}
	return broadcasts
}

func (s *service) loadUsers(ctx context.Context) []*models.User {
	var stored []*models.User
	s.Get(ctx, UsersKey, &stored)

	users := make([]*models.User, 0, len(stored))
	for _, user := range stored {
		if user != nil {
			users = append(users, user)
		}
	}
	return users
}

func (s *service) freshUsers(users []*models.User, now time.Time) []*models.User {
	fresh := make([]*models.User, 0, len(users))
	for _, user := range users {
		if now.Sub(user.LastSeen) < s.userTTL {
			fresh = append(fresh, user)
		}
	}
	return fresh
}
