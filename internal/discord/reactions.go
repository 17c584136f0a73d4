package discord

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

const reactionFollowUpChance = 0.1

// onMessageReactionAdd sometimes follows up when someone reacts to one of
// the bot's own messages.
func (b *Bot) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == b.botID() || b.store.IsBlacklisted(r.UserID) {
		return
	}
	if !b.engagement.Enabled() || b.engagement.TimedOut(time.Now()) {
		return
	}
	if b.random() >= reactionFollowUpChance {
		return
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil || msg.Author == nil || msg.Author.ID != b.botID() {
		return
	}

	go func() {
		comment, err := b.promptOnce(fmt.Sprintf(
			"someone reacted with %s to something you said earlier: \"%s\". respond briefly to the reaction in your usual voice.",
			r.Emoji.Name, msg.Content))
		if err != nil {
			log.Printf("[WARN] Reaction follow-up generation failed: %v", err)
			return
		}
		b.sendLong(r.ChannelID, comment)
	}()
}
