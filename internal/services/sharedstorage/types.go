package sharedstorage

import (
	"time"

	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/clock"
	"github.com/KirkDiggler/vipsync/internal/common/uuid"
	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
)

// Storage keys
const (
	SettingsKey   = "vip_system_settings_v2"
	BroadcastsKey = "vip_broadcast_messages_v2"
	UsersKey      = "vip_connected_users_v2"
)

// Event names
const (
	EventSettings   = "settings"
	EventBroadcasts = "broadcasts"
	EventAll        = events.Wildcard
)

// Defaults
const (
	DefaultCleanupInterval = time.Minute
	DefaultBroadcastLimit  = 20
	DefaultBroadcastTTL    = 24 * time.Hour
	DefaultUserTTL         = 5 * time.Minute
)

// Config holds configuration for the shared storage service
type Config struct {
	// Store is the shared backing store
	Store kvstore.Store

	// Clock defaults to the system clock
	Clock clock.Clock

	// UUID generates ID suffixes and the origin; defaults to random UUIDs
	UUID uuid.UUID

	// Logger is optional
	Logger *zap.Logger

	// ErrorHandler receives listener failures. Defaults to logging them.
	ErrorHandler events.ErrorHandler

	// Metrics is optional
	Metrics *Metrics

	// Origin identifies this instance's writes; generated when empty
	Origin string

	// CleanupInterval between sweeps. Zero means DefaultCleanupInterval, a
	// negative value disables the background sweep.
	CleanupInterval time.Duration

	// DisableWatch skips subscribing to other processes' changes
	DisableWatch bool

	// BroadcastLimit caps the stored broadcast list
	BroadcastLimit int

	// BroadcastTTL is how long a broadcast survives cleanup
	BroadcastTTL time.Duration

	// UserTTL is how long a user stays without activity
	UserTTL time.Duration
}

// UpdateSettingsInput contains parameters for updating one game's settings
type UpdateSettingsInput struct {
	// GameID is the game whose settings change, e.g. "pg"
	GameID string

	// Update holds the fields to change
	Update *models.GameSettingsUpdate
}

// UpdateSettingsOutput contains the full settings document after the merge
type UpdateSettingsOutput struct {
	Settings *models.Settings
}

// SendBroadcastInput contains the broadcast payload
type SendBroadcastInput struct {
	Title   string
	Message string
	Type    models.BroadcastType
	Sender  string
	Meta    map[string]string
}

// SendBroadcastOutput contains the created broadcast
type SendBroadcastOutput struct {
	Broadcast *models.Broadcast
}

// MarkBroadcastAsReadInput contains parameters for marking a broadcast read
type MarkBroadcastAsReadInput struct {
	BroadcastID string
}

// RegisterUserInput contains the user payload
type RegisterUserInput struct {
	Name string
	Role models.UserRole
	Page string
	Meta map[string]string
}

// RegisterUserOutput contains the created user
type RegisterUserOutput struct {
	User *models.User
}

// UpdateUserActivityInput contains parameters for refreshing a user
type UpdateUserActivityInput struct {
	UserID string
}

// CleanupOutput reports what a cleanup pass removed
type CleanupOutput struct {
	BroadcastsRemoved int `json:"broadcastsRemoved"`
	UsersRemoved      int `json:"usersRemoved"`
}
