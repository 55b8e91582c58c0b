package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/KirkDiggler/vipsync/internal/common/clock"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/services/sharedstorage"
)

// Subcommands of /vip
const (
	subcommandSettings  = "settings"
	subcommandBroadcast = "broadcast"
	subcommandUnread    = "unread"
	subcommandUsers     = "users"
)

// VipCommand handles the /vip command
type VipCommand struct {
	BaseCommand
	storage sharedstorage.Service
	clock   clock.Clock
}

// NewVipCommand creates a new vip command handler
func NewVipCommand(storage sharedstorage.Service, clk clock.Clock) *VipCommand {
	if clk == nil {
		clk = clock.New()
	}

	return &VipCommand{
		BaseCommand: BaseCommand{
			Name:        "vip",
			Description: "VIP system settings and broadcasts",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandSettings,
					Description: "Show the current game settings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandBroadcast,
					Description: "Send a broadcast to every connected user",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "message",
							Description: "Broadcast text",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "title",
							Description: "Optional headline",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "type",
							Description: "Display category",
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "info", Value: string(models.BroadcastTypeInfo)},
								{Name: "warning", Value: string(models.BroadcastTypeWarning)},
								{Name: "promo", Value: string(models.BroadcastTypePromo)},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandUnread,
					Description: "List broadcasts nobody has marked as read",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandUsers,
					Description: "List connected users",
				},
			},
		},
		storage: storage,
		clock:   clk,
	}
}

// Handle processes a Discord interaction for the vip command
func (c *VipCommand) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}

	data := i.ApplicationCommandData()
	if data.Name != c.Name || len(data.Options) == 0 {
		return nil
	}

	_, username := interactionUser(i)

	embeds, components, err := c.execute(context.Background(), data.Options[0], username)
	if err != nil {
		return RespondWithError(s, i, err.Error())
	}

	return RespondWithEmbeds(s, i, embeds, components)
}

// execute runs one subcommand and returns what to reply with
func (c *VipCommand) execute(ctx context.Context, sub *discordgo.ApplicationCommandInteractionDataOption, username string) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	switch sub.Name {
	case subcommandSettings:
		return []*discordgo.MessageEmbed{renderSettings(c.storage.GetSettings(ctx))}, nil, nil

	case subcommandBroadcast:
		input := &sharedstorage.SendBroadcastInput{
			Type:   models.BroadcastTypeInfo,
			Sender: username,
		}
		for _, opt := range sub.Options {
			switch opt.Name {
			case "message":
				input.Message = opt.StringValue()
			case "title":
				input.Title = opt.StringValue()
			case "type":
				input.Type = models.BroadcastType(opt.StringValue())
			}
		}

		if input.Message == "" {
			return nil, nil, errors.New("message cannot be empty")
		}

		output, err := c.storage.SendBroadcast(ctx, input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to send broadcast: %w", err)
		}

		return []*discordgo.MessageEmbed{renderBroadcast(output.Broadcast)}, nil, nil

	case subcommandUnread:
		unread := c.storage.GetUnreadBroadcasts(ctx)
		if len(unread) == 0 {
			return []*discordgo.MessageEmbed{{
				Title:       "Unread broadcasts",
				Description: "Everything has been read.",
				Color:       colorInfo,
			}}, nil, nil
		}

		// Discord allows at most 10 embeds and 5 action rows per message
		var embeds []*discordgo.MessageEmbed
		var components []discordgo.MessageComponent
		for n, broadcast := range unread {
			if n == 5 {
				break
			}
			embeds = append(embeds, renderBroadcast(broadcast))
			components = append(components, markReadButton(broadcast.ID))
		}
		return embeds, components, nil

	case subcommandUsers:
		return []*discordgo.MessageEmbed{renderUsers(c.storage.GetActiveUsers(ctx), c.clock.Now())}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown subcommand %q", sub.Name)
	}
}
