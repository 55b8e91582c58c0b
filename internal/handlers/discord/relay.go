package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/services/sharedstorage"
)

// relaySeenLimit bounds how many posted broadcast IDs the relay remembers.
// Must stay well above the stored broadcast limit.
const relaySeenLimit = 500

// MessageSender posts messages to a channel. *discordgo.Session implements it.
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// BroadcastSource is the part of the shared storage service the relay needs
type BroadcastSource interface {
	GetBroadcasts(ctx context.Context) []*models.Broadcast
	AddListener(event string, listener events.Listener) func()
}

// RelayConfig holds the configuration for a broadcast relay
type RelayConfig struct {
	// Sender posts the messages
	Sender MessageSender

	// Source provides broadcasts and change notifications
	Source BroadcastSource

	// ChannelID is where broadcasts are posted
	ChannelID string

	// Logger is optional
	Logger *zap.Logger
}

// Relay posts every new broadcast to a Discord channel
type Relay struct {
	sender    MessageSender
	source    BroadcastSource
	channelID string
	logger    *zap.Logger

	mu          sync.Mutex
	seen        map[string]struct{}
	seenOrder   []string
	unsubscribe func()
}

// NewRelay creates a new broadcast relay
func NewRelay(cfg *RelayConfig) (*Relay, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Sender == nil {
		return nil, errors.New("sender cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	if cfg.ChannelID == "" {
		return nil, errors.New("channel ID cannot be empty")
	}

	return &Relay{
		sender:    cfg.Sender,
		source:    cfg.Source,
		channelID: cfg.ChannelID,
		logger:    logging.OrNop(cfg.Logger),
		seen:      make(map[string]struct{}),
	}, nil
}

// Start marks the broadcasts that already exist as seen and subscribes to
// new ones
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	for _, broadcast := range r.source.GetBroadcasts(ctx) {
		r.markSeen(broadcast.ID)
	}
	r.mu.Unlock()

	unsubscribe := r.source.AddListener(sharedstorage.EventBroadcasts, r.handleBroadcasts)

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	r.logger.Info("broadcast relay started", zap.String("channel_id", r.channelID))
}

// Stop unsubscribes the relay
func (r *Relay) Stop() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleBroadcasts posts the broadcasts in the list that were not posted
// before, oldest first
func (r *Relay) handleBroadcasts(ctx context.Context, event events.Event) error {
	broadcasts, ok := event.Data.([]*models.Broadcast)
	if !ok {
		return fmt.Errorf("unexpected broadcasts payload %T", event.Data)
	}

	r.mu.Lock()
	var unseen []*models.Broadcast
	for _, broadcast := range broadcasts {
		if _, ok := r.seen[broadcast.ID]; !ok {
			unseen = append(unseen, broadcast)
			r.markSeen(broadcast.ID)
		}
	}
	r.mu.Unlock()

	slices.Reverse(unseen)

	var errs []error
	for _, broadcast := range unseen {
		_, err := r.sender.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{renderBroadcast(broadcast)},
			Components: []discordgo.MessageComponent{markReadButton(broadcast.ID)},
		})
		if err != nil {
			r.mu.Lock()
			r.forget(broadcast.ID)
			r.mu.Unlock()

			errs = append(errs, fmt.Errorf("failed to post broadcast %s: %w", broadcast.ID, err))
			continue
		}

		r.logger.Debug("broadcast posted", zap.String("broadcast_id", broadcast.ID))
	}

	return errors.Join(errs...)
}

// markSeen records id, dropping the oldest IDs past relaySeenLimit. An ID is
// never dropped because a later list lacks it; lists from other processes
// arrive out of order. Callers hold r.mu.
func (r *Relay) markSeen(id string) {
	r.seen[id] = struct{}{}
	r.seenOrder = append(r.seenOrder, id)

	for len(r.seenOrder) > relaySeenLimit {
		delete(r.seen, r.seenOrder[0])
		r.seenOrder = r.seenOrder[1:]
	}
}

// forget lets a broadcast whose post failed be posted again. Callers hold r.mu.
func (r *Relay) forget(id string) {
	delete(r.seen, id)
	r.seenOrder = slices.DeleteFunc(r.seenOrder, func(seen string) bool {
		return seen == id
	})
}
