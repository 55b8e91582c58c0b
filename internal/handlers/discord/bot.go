package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/clock"
	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/services/sharedstorage"
)

// Bot represents the Discord bot instance
type Bot struct {
	session    *discordgo.Session
	commands   map[string]CommandHandler
	commandIDs map[string]string // Maps command name to command ID
	storage    sharedstorage.Service
	relay      *Relay
	logger     *zap.Logger
	config     *Config
}

// Config holds the configuration for the bot
type Config struct {
	// Discord bot token
	Token string

	// Application ID for the bot
	ApplicationID string

	// Optional guild ID for development (server-specific commands)
	GuildID string

	// ChannelID receives every new broadcast. Optional.
	ChannelID string

	// Storage is the shared storage service
	Storage sharedstorage.Service

	// Clock defaults to the system clock
	Clock clock.Clock

	// Logger is optional
	Logger *zap.Logger
}

// New creates a new Discord bot
func New(cfg *Config) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Token == "" {
		return nil, errors.New("token cannot be empty")
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage service cannot be nil")
	}

	// Create a new Discord session
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	logger := logging.OrNop(cfg.Logger).Named("discord")

	bot := &Bot{
		session:    session,
		commands:   make(map[string]CommandHandler),
		commandIDs: make(map[string]string),
		storage:    cfg.Storage,
		logger:     logger,
		config:     cfg,
	}

	if cfg.ChannelID != "" {
		bot.relay, err = NewRelay(&RelayConfig{
			Sender:    session,
			Source:    cfg.Storage,
			ChannelID: cfg.ChannelID,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create broadcast relay: %w", err)
		}
	}

	// Register the interaction handler
	session.AddHandler(bot.handleInteraction)

	return bot, nil
}

// Start opens the Discord connection, registers commands and starts the relay
func (b *Bot) Start(ctx context.Context) error {
	// Open the websocket connection to Discord
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if err := b.RegisterCommand(NewVipCommand(b.storage, b.config.Clock)); err != nil {
		return fmt.Errorf("failed to register vip command: %w", err)
	}

	if b.relay != nil {
		b.relay.Start(ctx)
	}

	b.logger.Info("bot is running")
	return nil
}

// Stop removes registered commands and closes the Discord connection
func (b *Bot) Stop() error {
	if b.relay != nil {
		b.relay.Stop()
	}

	appID := b.appID()
	for cmdName, cmdID := range b.commandIDs {
		if err := b.session.ApplicationCommandDelete(appID, b.config.GuildID, cmdID); err != nil {
			b.logger.Warn("failed to delete command",
				zap.String("command", cmdName),
				zap.String("command_id", cmdID),
				zap.Error(err))
		}
	}

	return b.session.Close()
}

// RegisterCommand registers a command with Discord. Without a guild ID the
// command is registered globally.
func (b *Bot) RegisterCommand(cmd CommandHandler) error {
	createdCmd, err := b.session.ApplicationCommandCreate(b.appID(), b.config.GuildID, cmd.GetCommand())
	if err != nil {
		return fmt.Errorf("failed to create command %s: %w", cmd.GetName(), err)
	}

	// Store the command handler and its ID
	b.commands[cmd.GetName()] = cmd
	b.commandIDs[cmd.GetName()] = createdCmd.ID
	b.logger.Info("registered command",
		zap.String("command", cmd.GetName()),
		zap.String("command_id", createdCmd.ID),
		zap.String("guild_id", b.config.GuildID))

	return nil
}

func (b *Bot) appID() string {
	if b.config.ApplicationID != "" {
		return b.config.ApplicationID
	}
	// Fall back to session user ID if application ID is not provided
	return b.session.State.User.ID
}

// handleInteraction handles Discord interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		if h, ok := b.commands[name]; ok {
			if err := h.Handle(s, i); err != nil {
				b.logger.Error("failed to handle command", zap.String("command", name), zap.Error(err))
			}
		}
	case discordgo.InteractionMessageComponent:
		if err := b.handleComponentInteraction(s, i); err != nil {
			b.logger.Error("failed to handle component interaction", zap.Error(err))
		}
	}
}

// handleComponentInteraction handles button clicks
func (b *Bot) handleComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	customID := i.MessageComponentData().CustomID

	broadcastID, ok := strings.CutPrefix(customID, ButtonMarkReadPrefix)
	if !ok {
		return RespondWithError(s, i, fmt.Sprintf("Unknown button: %s", customID))
	}

	return RespondWithEphemeralMessage(s, i, b.markRead(context.Background(), broadcastID))
}

// markRead flags a broadcast as read and returns the reply for the user
func (b *Bot) markRead(ctx context.Context, broadcastID string) string {
	err := b.storage.MarkBroadcastAsRead(ctx, &sharedstorage.MarkBroadcastAsReadInput{
		BroadcastID: broadcastID,
	})
	if err != nil {
		b.logger.Error("failed to mark broadcast as read", zap.String("broadcast_id", broadcastID), zap.Error(err))
		return fmt.Sprintf("Failed to mark broadcast as read: %v", err)
	}

	return "Broadcast marked as read."
}
