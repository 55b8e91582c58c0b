package discord

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KirkDiggler/vipsync/internal/models"
)

// Embed colors
const (
	colorInfo    = 0x3498db
	colorWarning = 0xf1c40f
	colorPromo   = 0x2ecc71
	colorError   = 0xff0000
)

// Component custom IDs
const (
	// ButtonMarkReadPrefix is followed by the broadcast ID
	ButtonMarkReadPrefix = "mark_read:"
)

// renderBroadcast builds the embed posted for one broadcast
func renderBroadcast(broadcast *models.Broadcast) *discordgo.MessageEmbed {
	title := broadcast.Title
	if title == "" {
		title = "Broadcast"
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: broadcast.Message,
		Color:       broadcastColor(broadcast.Type),
		Timestamp:   broadcast.Timestamp.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: broadcast.ID,
		},
	}

	if broadcast.Sender != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name: broadcast.Sender,
		}
	}

	keys := make([]string, 0, len(broadcast.Meta))
	for key := range broadcast.Meta {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   key,
			Value:  broadcast.Meta[key],
			Inline: true,
		})
	}

	return embed
}

func broadcastColor(t models.BroadcastType) int {
	switch t {
	case models.BroadcastTypeWarning:
		return colorWarning
	case models.BroadcastTypePromo:
		return colorPromo
	default:
		return colorInfo
	}
}

// markReadButton lets a user acknowledge the broadcast from Discord
func markReadButton(broadcastID string) discordgo.MessageComponent {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Mark as read",
				Style:    discordgo.SecondaryButton,
				CustomID: ButtonMarkReadPrefix + broadcastID,
			},
		},
	}
}

// renderSettings builds one embed listing every game's tunables
func renderSettings(settings *models.Settings) *discordgo.MessageEmbed {
	gameIDs := make([]string, 0, len(settings.Games))
	for id := range settings.Games {
		gameIDs = append(gameIDs, id)
	}
	slices.Sort(gameIDs)

	embed := &discordgo.MessageEmbed{
		Title:     "VIP settings",
		Color:     colorInfo,
		Timestamp: settings.LastUpdated.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "version " + settings.Version,
		},
	}

	for _, id := range gameIDs {
		game := settings.Games[id]

		var sb strings.Builder
		fmt.Fprintf(&sb, "Base win: %d%%\nBonus chance: %d%%", game.BaseWin, game.BonusChance)
		if game.Randomness != nil {
			fmt.Fprintf(&sb, "\nRandomness: %d%%", *game.Randomness)
		}
		if game.Volatility != nil {
			fmt.Fprintf(&sb, "\nVolatility: %d%%", *game.Volatility)
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   strings.ToUpper(id),
			Value:  sb.String(),
			Inline: true,
		})
	}

	return embed
}

// renderUsers builds the embed for the active user list
func renderUsers(users []*models.User, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Active users (%d)", len(users)),
		Color: colorInfo,
	}

	if len(users) == 0 {
		embed.Description = "Nobody is connected."
		return embed
	}

	var sb strings.Builder
	for _, user := range users {
		name := user.Name
		if name == "" {
			name = user.ID
		}
		fmt.Fprintf(&sb, "**%s** (%s) seen %s ago", name, user.Role, now.Sub(user.LastSeen).Round(time.Second))
		if user.Page != "" {
			fmt.Fprintf(&sb, " on %s", user.Page)
		}
		sb.WriteString("\n")
	}
	embed.Description = strings.TrimSuffix(sb.String(), "\n")

	return embed
}

func renderError(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: message,
		Color:       colorError,
	}
}
