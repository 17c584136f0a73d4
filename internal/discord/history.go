package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"exia/internal/mind"
)

// sessionHistory adapts the Discord REST history endpoint to the context
// builder. Messages come back newest-first, which is what the builder
// expects.
type sessionHistory struct {
	dg *discordgo.Session
}

func (h *sessionHistory) RecentMessages(channelID string, limit int) ([]mind.PlatformMessage, error) {
	msgs, err := h.dg.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetch channel history %s: %w", channelID, err)
	}

	botID := ""
	if h.dg.State.User != nil {
		botID = h.dg.State.User.ID
	}

	out := make([]mind.PlatformMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil || m.Content == "" {
			continue
		}
		name := m.Author.Username
		if m.Member != nil && m.Member.Nick != "" {
			name = m.Member.Nick
		}
		out = append(out, mind.PlatformMessage{
			AuthorID:   m.Author.ID,
			AuthorName: name,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			FromBot:    m.Author.Bot || m.Author.ID == botID,
		})
	}
	return out, nil
}
