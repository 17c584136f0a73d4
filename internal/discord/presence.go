package discord

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

// onPresenceUpdate occasionally comments when someone starts an activity.
// The sample is deliberately tiny so this stays a rare aside, not a habit.
func (b *Bot) onPresenceUpdate(s *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.User.ID == b.botID() || p.GuildID == "" {
		return
	}
	if !b.engagement.Enabled() || b.engagement.TimedOut(time.Now()) {
		return
	}
	if len(p.Activities) == 0 || p.Activities[0] == nil || p.Activities[0].Name == "" {
		return
	}
	if b.random() >= b.cfg.PresenceChance {
		return
	}

	activity := p.Activities[0].Name
	cfg, err := b.store.GuildConfig(p.GuildID)
	if err != nil || cfg.PresenceChannelID == "" {
		return
	}

	member, err := s.State.Member(p.GuildID, p.User.ID)
	name := p.User.Username
	if err == nil && member.Nick != "" {
		name = member.Nick
	}

	go func() {
		comment, err := b.promptOnce(fmt.Sprintf(
			"%s just started %s. make a brief offhand comment about it in your usual voice.", name, activity))
		if err != nil {
			log.Printf("[WARN] Presence comment generation failed: %v", err)
			return
		}
		b.sendLong(cfg.PresenceChannelID, comment)
		log.Printf("[INFO] Presence comment for %s in guild %s", p.User.ID, p.GuildID)
	}()
}
