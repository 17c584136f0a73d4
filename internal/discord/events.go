package discord

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"exia/internal/ai"
	"exia/internal/mind"
)

const generateTimeout = 2 * time.Minute

var errEmptyReply = errors.New("completion produced no usable text")

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s (%d guilds)", r.User.Username, len(r.Guilds))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if b.store.IsBlacklisted(m.Author.ID) {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	now := time.Now()
	if err := b.store.BumpStat(m.Author.ID, "message", now); err != nil {
		log.Printf("[WARN] Stat tracking failed for %s: %v", m.Author.ID, err)
	}

	if m.GuildID == "" {
		b.handleDM(m, now)
		return
	}
	if strings.HasPrefix(content, "!") {
		b.dispatchCommand(m, content, now)
		return
	}
	b.handleConversation(m, now)
}

// handleConversation runs one message through the decision engine and acts on
// the outcome. Cooldown and engagement stamps are committed before the
// generation goroutine starts, so concurrent messages in the same window
// cannot double-trigger.
func (b *Bot) handleConversation(m *discordgo.MessageCreate, now time.Time) {
	guildCfg, err := b.store.GuildConfig(m.GuildID)
	if err != nil {
		log.Printf("[ERR] Guild config load failed for %s: %v", m.GuildID, err)
		return
	}
	settings := b.store.Settings()

	action := b.engine.Decide(mind.Input{
		UserID:          m.Author.ID,
		Mentioned:       b.isMention(m),
		Now:             now,
		BaseChance:      settings.ReplyChanceBase,
		GuildOverride:   guildCfg.ReplyChanceOverride,
		PhantomEnabled:  settings.PhantomEnabled,
		ChannelDisabled: guildCfg.IsChannelDisabled(m.ChannelID),
	})
	// Stamp after the decision so the recency tier compares against the
	// previous user message, not this one.
	b.engagement.MarkUserMessage(now)

	switch action {
	case mind.React:
		emoji := reactionEmojis[rand.Intn(len(reactionEmojis))]
		if err := b.dg.MessageReactionAdd(m.ChannelID, m.ID, emoji); err != nil {
			log.Printf("[WARN] Reaction failed in %s: %v", m.ChannelID, err)
		}
	case mind.Reply:
		b.engine.Accept(now)
		go b.respond(m.ChannelID, mind.Entry{
			Role:       mind.RoleUser,
			Content:    m.Content,
			Timestamp:  now,
			AuthorID:   m.Author.ID,
			AuthorName: displayName(m),
		})
	}
}

// respond builds the context, runs the completion, and sends the reply after
// a typing pause. Terminal backend failures fall back to a stock line.
func (b *Bot) respond(channelID string, trigger mind.Entry) {
	if err := b.dg.ChannelTyping(channelID); err != nil {
		log.Printf("[WARN] Typing indicator failed in %s: %v", channelID, err)
	}
	time.Sleep(b.typingDelay())

	messages := b.builder.Build(channelID, trigger, time.Now())
	reply := b.generate(messages)

	now := time.Now()
	b.memory.RecordReply(channelID, reply, now)
	b.memory.Record(channelID, mind.Entry{
		Role:       mind.RoleAssistant,
		Content:    reply,
		Timestamp:  now,
		AuthorID:   b.botID(),
		AuthorName: b.cfg.PersonaName,
	})
	b.sendLong(channelID, reply)
}

// generate runs one completion and normalizes the output. Any terminal error
// maps to the fallback line so the channel always gets something.
func (b *Bot) generate(messages []ai.Message) string {
	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	raw, err := b.provider.Generate(ctx, messages, b.store.Settings().MaxTokens)
	if err != nil {
		log.Printf("[ERR] Completion failed: %v", err)
		return fallbackReply
	}
	reply := ai.CleanReply(b.cfg.PersonaName, raw)
	if reply == "" {
		return fallbackReply
	}
	return reply
}

// promptOnce is the single-shot variant used by the commentary surfaces
// (boredom, presence, reaction follow-ups): persona plus one instruction.
func (b *Bot) promptOnce(instruction string) (string, error) {
	messages := []ai.Message{
		{Role: mind.RoleSystem, Content: b.persona},
		{Role: mind.RoleUser, Content: instruction},
	}
	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	raw, err := b.provider.Generate(ctx, messages, b.store.Settings().MaxTokens)
	if err != nil {
		return "", err
	}
	reply := ai.CleanReply(b.cfg.PersonaName, raw)
	if reply == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

func (b *Bot) botID() string {
	if b.dg.State.User != nil {
		return b.dg.State.User.ID
	}
	return ""
}
