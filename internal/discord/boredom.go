package discord

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"exia/internal/mind"
)

const boredomPrompt = "the chat has been dead for a while and you're bored. say something to get a conversation going. keep it short and in your usual voice."

// boredomLoop periodically lets the bot speak up in an idle server. The
// chance escalates with idle time and resets whenever the bot says anything.
func (b *Bot) boredomLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.BoredomInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.boredomTick(time.Now())
		}
	}
}

func (b *Bot) boredomTick(now time.Time) {
	settings := b.store.Settings()
	if !settings.BoredomEnabled || !b.engagement.Enabled() || b.engagement.TimedOut(now) {
		return
	}
	if b.engagement.IdleFor(now) < b.cfg.BoredomIdle {
		return
	}

	chance := b.engagement.EscalateBoredom(b.cfg.BoredomIncrement, b.cfg.BoredomMax)
	if b.random() >= chance {
		return
	}

	for _, g := range b.dg.State.Guilds {
		channelID := b.boredomChannel(g)
		if channelID == "" {
			continue
		}
		if b.speakBored(channelID) && !b.cfg.BoredomAllGuilds {
			return
		}
	}
}

// boredomChannel picks the configured boredom channel, falling back to the
// first text channel the bot can write to.
func (b *Bot) boredomChannel(g *discordgo.Guild) string {
	if cfg, err := b.store.GuildConfig(g.ID); err == nil && cfg.BoredomChannelID != "" {
		return cfg.BoredomChannelID
	}
	return b.firstWritableChannel(g)
}

func (b *Bot) firstWritableChannel(g *discordgo.Guild) string {
	botID := b.botID()
	for _, ch := range g.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		perms, err := b.dg.State.UserChannelPermissions(botID, ch.ID)
		if err != nil {
			continue
		}
		if perms&discordgo.PermissionSendMessages != 0 {
			return ch.ID
		}
	}
	return ""
}

// speakBored generates and sends one bored message. Engagement is marked so
// the escalation resets and the activity tier sees the bot as engaged.
func (b *Bot) speakBored(channelID string) bool {
	msg, err := b.promptOnce(boredomPrompt)
	if err != nil {
		log.Printf("[WARN] Bored message generation failed: %v", err)
		return false
	}

	now := time.Now()
	b.engagement.MarkEngaged(now)
	b.memory.RecordReply(channelID, msg, now)
	b.memory.Record(channelID, mind.Entry{
		Role:       mind.RoleAssistant,
		Content:    msg,
		Timestamp:  now,
		AuthorID:   b.botID(),
		AuthorName: b.cfg.PersonaName,
	})
	b.sendLong(channelID, msg)
	log.Printf("[INFO] Sent bored message to channel %s", channelID)
	return true
}
