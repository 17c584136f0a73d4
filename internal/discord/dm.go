package discord

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"exia/internal/mind"
	"exia/internal/reminder"
	"exia/internal/storage"
)

// handleDM routes a direct message: reminder management first, then plain
// conversation. DMs always get a reply; the guild decision engine does not
// apply here.
func (b *Bot) handleDM(m *discordgo.MessageCreate, now time.Time) {
	content := strings.TrimSpace(m.Content)
	lower := strings.ToLower(content)

	switch lower {
	case "list reminders", "show reminders", "my reminders":
		reminders, err := b.store.UserReminders(m.Author.ID)
		if err != nil {
			log.Printf("[ERR] Reminder load failed for %s: %v", m.Author.ID, err)
			b.sendLong(m.ChannelID, "couldn't load your reminders")
			return
		}
		b.sendLong(m.ChannelID, reminder.FormatList(reminders))
		return
	}

	if id, ok := strings.CutPrefix(lower, "cancel reminder "); ok {
		b.cancelReminderDM(m, strings.ToUpper(strings.TrimSpace(id)))
		return
	}

	task, due, matched, err := b.parser.ParseRequest(content, now)
	if matched {
		if err != nil {
			log.Printf("[WARN] Reminder time parse failed for %s: %v", m.Author.ID, err)
			b.sendLong(m.ChannelID, "couldn't make sense of that time. try something like \"remind me to stretch at 3pm\"")
			return
		}
		b.createReminder(m, task, due, now)
		return
	}

	// Plain DM conversation.
	go b.respond(m.ChannelID, mind.Entry{
		Role:       mind.RoleUser,
		Content:    m.Content,
		Timestamp:  now,
		AuthorID:   m.Author.ID,
		AuthorName: displayName(m),
	})
}

func (b *Bot) createReminder(m *discordgo.MessageCreate, task string, due, now time.Time) {
	r := storage.Reminder{
		ID:        reminder.NewID(),
		UserID:    m.Author.ID,
		Task:      task,
		DueAt:     due,
		CreatedAt: now,
	}
	if err := b.store.AddReminder(r); err != nil {
		log.Printf("[ERR] Reminder save failed for %s: %v", m.Author.ID, err)
		b.sendLong(m.ChannelID, "couldn't save that reminder")
		return
	}
	if err := b.store.BumpStat(m.Author.ID, "reminder", now); err != nil {
		log.Printf("[WARN] Stat tracking failed for %s: %v", m.Author.ID, err)
	}
	b.saveStore()
	log.Printf("[INFO] Reminder %s set for user %s at %s", r.ID, m.Author.ID, due.Format(time.RFC3339))

	b.sendLong(m.ChannelID, fmt.Sprintf("got it. i'll remind you to '%s' at %s (id: %s)",
		task, due.Format("2006-01-02 15:04"), r.ID))

	// In-character follow-up; best effort.
	go func() {
		ack, err := b.promptOnce(fmt.Sprintf(
			"someone just asked you to remind them to '%s'. acknowledge it briefly in your own voice.", task))
		if err != nil {
			return
		}
		b.sendLong(m.ChannelID, ack)
	}()
}

func (b *Bot) cancelReminderDM(m *discordgo.MessageCreate, id string) {
	removed, ok, err := b.store.RemoveReminder(m.Author.ID, id)
	if err != nil {
		log.Printf("[ERR] Reminder load failed for %s: %v", m.Author.ID, err)
		b.sendLong(m.ChannelID, "couldn't load your reminders")
		return
	}
	if !ok {
		b.sendLong(m.ChannelID, fmt.Sprintf("no reminder with id %s", id))
		return
	}
	b.saveStore()
	b.sendLong(m.ChannelID, fmt.Sprintf("cancelled [%s] %s", removed.ID, removed.Task))
}
