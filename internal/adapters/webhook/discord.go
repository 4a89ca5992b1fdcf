package webhook

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

const (
	embedColor  = 0x5865F2
	embedFooter = "MC Votes"
)

// VoteEmbed renders a vote received event as a Discord embed.
func VoteEmbed(event domain.VoteReceivedEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "New Vote Received!",
		Description: fmt.Sprintf("**%s** voted for **%s**!", event.MinecraftUsername, event.ServerName),
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Player",
				Value:  event.MinecraftUsername,
				Inline: true,
			},
			{
				Name:   "Monthly Votes",
				Value:  strconv.FormatInt(event.MonthlyVotes, 10),
				Inline: true,
			},
			{
				Name:   "Total Votes",
				Value:  strconv.FormatInt(event.TotalVotes, 10),
				Inline: true,
			},
		},
		Timestamp: event.CreatedAt.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: embedFooter,
		},
	}

	if event.MinecraftUUID != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: fmt.Sprintf("https://crafatar.com/avatars/%s?size=64&overlay", event.MinecraftUUID),
		}
	}
	return embed
}

func VoteMessage(event domain.VoteReceivedEvent) *discordgo.WebhookParams {
	return &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{VoteEmbed(event)},
	}
}
