package sharedstorage

import (
	"context"

	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
)

// Service is the shared storage facade
type Service interface {
	// Get decodes the JSON value stored under key into dst. It returns false
	// if the key is absent or the value cannot be decoded.
	Get(ctx context.Context, key string, dst any) bool

	// Set encodes value as JSON, stores it and notifies listeners. It returns
	// false if encoding or storing fails.
	Set(ctx context.Context, key string, value any) bool

	// GetSettings returns the stored settings, or the defaults if none exist
	GetSettings(ctx context.Context) *models.Settings

	// UpdateSettings merges a partial update into one game's settings
	UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error)

	// SendBroadcast prepends a new broadcast, keeping only the newest ones
	SendBroadcast(ctx context.Context, input *SendBroadcastInput) (*SendBroadcastOutput, error)

	// GetBroadcasts returns every stored broadcast, newest first
	GetBroadcasts(ctx context.Context) []*models.Broadcast

	// GetUnreadBroadcasts returns the broadcasts not yet marked as read
	GetUnreadBroadcasts(ctx context.Context) []*models.Broadcast

	// MarkBroadcastAsRead flags one broadcast as read
	MarkBroadcastAsRead(ctx context.Context, input *MarkBroadcastAsReadInput) error

	// RegisterUser adds a connected user, evicting stale ones
	RegisterUser(ctx context.Context, input *RegisterUserInput) (*RegisterUserOutput, error)

	// UpdateUserActivity refreshes a user's last-seen time
	UpdateUserActivity(ctx context.Context, input *UpdateUserActivityInput) error

	// GetUsers returns every stored user
	GetUsers(ctx context.Context) []*models.User

	// GetActiveUsers returns users seen within the user TTL
	GetActiveUsers(ctx context.Context) []*models.User

	// AddListener subscribes to a named event or the wildcard
	AddListener(event string, listener events.Listener) func()

	// NotifyListeners publishes data to the listeners of event
	NotifyListeners(ctx context.Context, event string, data any)

	// RunCleanup removes expired broadcasts and stale users once
	RunCleanup(ctx context.Context) *CleanupOutput

	// Close stops the background watcher and cleanup loop
	Close() error
}
