package discord

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"exia/internal/reminder"
)

const adminDenial = "you need admin for that"

// command is one entry in the text-command table.
type command struct {
	minArgs   int
	adminOnly bool
	usage     string
	help      string
	run       func(c *cmdContext) string
}

// cmdContext bundles what a handler needs for one invocation. A non-empty
// return from run is sent to the invoking channel.
type cmdContext struct {
	b    *Bot
	m    *discordgo.MessageCreate
	args []string
	now  time.Time
}

// dispatchCommand routes a "!" message through the table. The command
// cooldown is consumed only for recognized commands; unknown names are
// ignored silently. Authorization and arity failures reply without mutating
// anything.
func (b *Bot) dispatchCommand(m *discordgo.MessageCreate, content string, now time.Time) {
	parts := strings.Fields(content)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "!"))
	cmd, ok := b.commands[name]
	if !ok {
		return
	}

	if ready, remaining := b.gate.CommandReady(m.Author.ID, now); !ready {
		b.sendLong(m.ChannelID, fmt.Sprintf("slow down. wait %ds", int(remaining.Seconds())+1))
		return
	}
	if err := b.store.BumpStat(m.Author.ID, "command", now); err != nil {
		log.Printf("[WARN] Stat tracking failed for %s: %v", m.Author.ID, err)
	}

	if cmd.adminOnly && !b.isAdmin(m.GuildID, m.Author.ID) {
		b.sendLong(m.ChannelID, adminDenial)
		return
	}
	args := parts[1:]
	if len(args) < cmd.minArgs {
		b.sendLong(m.ChannelID, "usage: "+cmd.usage)
		return
	}

	log.Printf("[INFO] Command !%s from %s in %s", name, m.Author.ID, m.ChannelID)
	if reply := cmd.run(&cmdContext{b: b, m: m, args: args, now: now}); reply != "" {
		b.sendLong(m.ChannelID, reply)
	}
}

// targetUser resolves a command argument to a user id: an explicit mention
// wins, otherwise a raw or <@...>-wrapped id.
func (c *cmdContext) targetUser() string {
	if len(c.m.Mentions) > 0 {
		return c.m.Mentions[0].ID
	}
	id := strings.TrimSuffix(strings.TrimPrefix(c.args[0], "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	return id
}

func commandTable() map[string]*command {
	return map[string]*command{
		// Admin
		"setadmin": {
			minArgs: 1, adminOnly: true,
			usage: "!setadmin <@user>",
			help:  "grant admin to a user",
			run:   cmdSetAdmin,
		},
		"removeadmin": {
			minArgs: 1, adminOnly: true,
			usage: "!removeadmin <@user>",
			help:  "revoke admin from a user",
			run:   cmdRemoveAdmin,
		},
		"setchannel": {
			minArgs: 1, adminOnly: true,
			usage: "!setchannel <boredom|presence|mute|unmute>",
			help:  "bind this channel to a role, or mute/unmute it for replies",
			run:   cmdSetChannel,
		},
		"globalstatus": {
			adminOnly: true,
			usage:     "!globalstatus",
			help:      "full runtime status",
			run:       cmdGlobalStatus,
		},
		"contextinfo": {
			adminOnly: true,
			usage:     "!contextinfo",
			help:      "memory and context stats for this channel",
			run:       cmdContextInfo,
		},
		"shutdown": {
			adminOnly: true,
			usage:     "!shutdown",
			help:      "stop the bot",
			run:       cmdShutdown,
		},
		"blacklist": {
			minArgs: 1, adminOnly: true,
			usage: "!blacklist <@user>",
			help:  "ignore a user entirely",
			run:   cmdBlacklist,
		},
		"whitelist": {
			minArgs: 1, adminOnly: true,
			usage: "!whitelist <@user>",
			help:  "remove a user from the blacklist",
			run:   cmdWhitelist,
		},

		// Moderation
		"clearcontext": {
			adminOnly: true,
			usage:     "!clearcontext",
			help:      "wipe remembered conversation for this channel",
			run:       cmdClearContext,
		},
		"maxreply": {
			minArgs: 1, adminOnly: true,
			usage: "!maxreply <50-1000>",
			help:  "set the completion token cap",
			run:   cmdMaxReply,
		},
		"timeout": {
			adminOnly: true,
			usage:     "!timeout [minutes]",
			help:      "silence the bot for a while (default 15 minutes)",
			run:       cmdTimeout,
		},
		"resume": {
			adminOnly: true,
			usage:     "!resume",
			help:      "end a timeout early",
			run:       cmdResume,
		},
		"toggle": {
			adminOnly: true,
			usage:     "!toggle",
			help:      "enable or disable the bot globally",
			run:       cmdToggle,
		},
		"replychance": {
			minArgs: 1, adminOnly: true,
			usage: "!replychance <0.0-1.0>",
			help:  "set this guild's unprompted reply chance",
			run:   cmdReplyChance,
		},
		"toggleboredom": {
			adminOnly: true,
			usage:     "!toggleboredom",
			help:      "enable or disable bored messages",
			run:       cmdToggleBoredom,
		},
		"togglephantom": {
			adminOnly: true,
			usage:     "!togglephantom",
			help:      "enable or disable unprompted replies",
			run:       cmdTogglePhantom,
		},

		// User
		"status": {
			usage: "!status",
			help:  "quick bot status",
			run:   cmdStatus,
		},
		"commands": {
			usage: "!commands",
			help:  "list all commands",
			run:   cmdCommands,
		},
		"help": {
			usage: "!help [command]",
			help:  "show help",
			run:   cmdHelp,
		},
		"myreminders": {
			usage: "!myreminders",
			help:  "list your reminders",
			run:   cmdMyReminders,
		},
		"cancelreminder": {
			minArgs: 1,
			usage:   "!cancelreminder <id>",
			help:    "cancel one of your reminders",
			run:     cmdCancelReminder,
		},
		"mystats": {
			usage: "!mystats",
			help:  "your interaction stats",
			run:   cmdMyStats,
		},
		"preference": {
			minArgs: 2,
			usage:   "!preference <key> <value>",
			help:    "store a personal preference",
			run:     cmdPreference,
		},
	}
}

func cmdSetAdmin(c *cmdContext) string {
	target := c.targetUser()
	cfg, err := c.b.store.GuildConfig(c.m.GuildID)
	if err != nil {
		return "couldn't load guild config"
	}
	if cfg.IsAdmin(target) {
		return "already an admin"
	}
	cfg.AdminIDs = append(cfg.AdminIDs, target)
	c.b.store.SetGuildConfig(c.m.GuildID, cfg)
	c.b.saveStore()
	return fmt.Sprintf("<@%s> is an admin now", target)
}

func cmdRemoveAdmin(c *cmdContext) string {
	target := c.targetUser()
	cfg, err := c.b.store.GuildConfig(c.m.GuildID)
	if err != nil {
		return "couldn't load guild config"
	}
	kept := cfg.AdminIDs[:0]
	for _, id := range cfg.AdminIDs {
		if id != target {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(cfg.AdminIDs) {
		return "they weren't an admin"
	}
	cfg.AdminIDs = kept
	c.b.store.SetGuildConfig(c.m.GuildID, cfg)
	c.b.saveStore()
	return fmt.Sprintf("<@%s> is no longer an admin", target)
}

func cmdSetChannel(c *cmdContext) string {
	cfg, err := c.b.store.GuildConfig(c.m.GuildID)
	if err != nil {
		return "couldn't load guild config"
	}
	switch strings.ToLower(c.args[0]) {
	case "boredom":
		cfg.BoredomChannelID = c.m.ChannelID
		c.b.store.SetGuildConfig(c.m.GuildID, cfg)
		c.b.saveStore()
		return "bored messages will land here"
	case "presence":
		cfg.PresenceChannelID = c.m.ChannelID
		c.b.store.SetGuildConfig(c.m.GuildID, cfg)
		c.b.saveStore()
		return "presence comments will land here"
	case "mute":
		if cfg.IsChannelDisabled(c.m.ChannelID) {
			return "this channel is already muted"
		}
		cfg.DisabledChannelIDs = append(cfg.DisabledChannelIDs, c.m.ChannelID)
		c.b.store.SetGuildConfig(c.m.GuildID, cfg)
		c.b.saveStore()
		return "okay, staying out of this channel"
	case "unmute":
		kept := cfg.DisabledChannelIDs[:0]
		for _, id := range cfg.DisabledChannelIDs {
			if id != c.m.ChannelID {
				kept = append(kept, id)
			}
		}
		cfg.DisabledChannelIDs = kept
		c.b.store.SetGuildConfig(c.m.GuildID, cfg)
		c.b.saveStore()
		return "back in this channel"
	default:
		return "usage: !setchannel <boredom|presence|mute|unmute>"
	}
}

func cmdGlobalStatus(c *cmdContext) string {
	s := c.b.store.Settings()
	var sb strings.Builder
	sb.WriteString("global status:\n")
	fmt.Fprintf(&sb, "• enabled: %t\n", c.b.engagement.Enabled())
	if c.b.engagement.TimedOut(c.now) {
		fmt.Fprintf(&sb, "• timed out for another %s\n", c.b.engagement.TimeoutRemaining(c.now).Round(time.Second))
	}
	fmt.Fprintf(&sb, "• phantom replies: %t (base chance %.2f)\n", s.PhantomEnabled, s.ReplyChanceBase)
	fmt.Fprintf(&sb, "• boredom: %t (current chance %.2f)\n", s.BoredomEnabled, c.b.engagement.BoredomChance())
	fmt.Fprintf(&sb, "• max reply tokens: %d\n", s.MaxTokens)
	fmt.Fprintf(&sb, "• tracked users: %d\n", c.b.store.TrackedUsers())
	fmt.Fprintf(&sb, "• uptime: %s", c.now.Sub(c.b.startedAt).Round(time.Second))
	return sb.String()
}

func cmdContextInfo(c *cmdContext) string {
	entries, replies := c.b.memory.Summary(c.m.ChannelID)
	return fmt.Sprintf(
		"context for this channel:\n• remembered messages: %d\n• recent bot replies: %d\n• window: %s / %d messages / ~%d tokens",
		entries, replies, c.b.cfg.ContextWindow, c.b.cfg.MaxContextMsgs, c.b.cfg.TokenBudget)
}

func cmdShutdown(c *cmdContext) string {
	c.b.sendLong(c.m.ChannelID, "alright, going dark")
	c.b.shutdown()
	return ""
}

func cmdBlacklist(c *cmdContext) string {
	target := c.targetUser()
	c.b.store.AddToBlacklist(target)
	c.b.saveStore()
	return fmt.Sprintf("<@%s> is on the blacklist", target)
}

func cmdWhitelist(c *cmdContext) string {
	target := c.targetUser()
	if !c.b.store.RemoveFromBlacklist(target) {
		return "they weren't blacklisted"
	}
	c.b.saveStore()
	return fmt.Sprintf("<@%s> is off the blacklist", target)
}

func cmdClearContext(c *cmdContext) string {
	c.b.memory.Clear(c.m.ChannelID)
	return "context cleared. fresh start"
}

func cmdMaxReply(c *cmdContext) string {
	n, err := strconv.Atoi(c.args[0])
	if err != nil {
		return "that's not a number. try !maxreply 200"
	}
	if n < 50 {
		n = 50
	}
	if n > 1000 {
		n = 1000
	}
	s := c.b.store.Settings()
	s.MaxTokens = n
	c.b.store.SetSettings(s)
	c.b.saveStore()
	return fmt.Sprintf("max reply tokens set to %d", n)
}

func cmdTimeout(c *cmdContext) string {
	minutes := 15
	if len(c.args) > 0 {
		n, err := strconv.Atoi(c.args[0])
		if err != nil || n <= 0 {
			return "that's not a duration. try !timeout 15"
		}
		minutes = n
	}
	c.b.engagement.SetTimeout(c.now.Add(time.Duration(minutes) * time.Minute))
	return fmt.Sprintf("fine. going quiet for %d minutes", minutes)
}

func cmdResume(c *cmdContext) string {
	c.b.engagement.Resume()
	return "i'm back"
}

func cmdToggle(c *cmdContext) string {
	on := c.b.engagement.Toggle()
	s := c.b.store.Settings()
	s.Enabled = on
	c.b.store.SetSettings(s)
	c.b.saveStore()
	if on {
		return "back online"
	}
	return "going offline. use !toggle to wake me"
}

func cmdReplyChance(c *cmdContext) string {
	v, err := strconv.ParseFloat(c.args[0], 64)
	if err != nil || v < 0 || v > 1 {
		return "needs to be between 0.0 and 1.0. try !replychance 0.1"
	}
	cfg, err := c.b.store.GuildConfig(c.m.GuildID)
	if err != nil {
		return "couldn't load guild config"
	}
	cfg.ReplyChanceOverride = &v
	c.b.store.SetGuildConfig(c.m.GuildID, cfg)
	c.b.saveStore()
	return fmt.Sprintf("reply chance for this server set to %.2f", v)
}

func cmdToggleBoredom(c *cmdContext) string {
	s := c.b.store.Settings()
	s.BoredomEnabled = !s.BoredomEnabled
	c.b.store.SetSettings(s)
	c.b.saveStore()
	if s.BoredomEnabled {
		return "boredom on. i'll speak up when it's dead in here"
	}
	return "boredom off"
}

func cmdTogglePhantom(c *cmdContext) string {
	s := c.b.store.Settings()
	s.PhantomEnabled = !s.PhantomEnabled
	c.b.store.SetSettings(s)
	c.b.saveStore()
	if s.PhantomEnabled {
		return "phantom replies on"
	}
	return "phantom replies off. mention me if you want me"
}

func cmdStatus(c *cmdContext) string {
	s := c.b.store.Settings()
	if !c.b.engagement.Enabled() {
		return "i'm disabled right now"
	}
	if c.b.engagement.TimedOut(c.now) {
		return fmt.Sprintf("timed out. back in %s", c.b.engagement.TimeoutRemaining(c.now).Round(time.Second))
	}
	chance := s.ReplyChanceBase
	if cfg, err := c.b.store.GuildConfig(c.m.GuildID); err == nil && cfg.ReplyChanceOverride != nil {
		chance = *cfg.ReplyChanceOverride
	}
	return fmt.Sprintf("here and listening. reply chance %.2f, phantom %t, boredom %t", chance, s.PhantomEnabled, s.BoredomEnabled)
}

func cmdCommands(c *cmdContext) string {
	names := make([]string, 0, len(c.b.commands))
	for name := range c.b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("commands:")
	for _, name := range names {
		cmd := c.b.commands[name]
		marker := ""
		if cmd.adminOnly {
			marker = " (admin)"
		}
		fmt.Fprintf(&sb, "\n• %s%s — %s", cmd.usage, marker, cmd.help)
	}
	return sb.String()
}

func cmdHelp(c *cmdContext) string {
	if len(c.args) == 0 {
		return "try !commands for the full list, or !help <command> for one of them.\nyou can also DM me \"remind me to <task> at <time>\""
	}
	name := strings.ToLower(strings.TrimPrefix(c.args[0], "!"))
	cmd, ok := c.b.commands[name]
	if !ok {
		return "never heard of that one"
	}
	return fmt.Sprintf("%s — %s", cmd.usage, cmd.help)
}

func cmdMyReminders(c *cmdContext) string {
	reminders, err := c.b.store.UserReminders(c.m.Author.ID)
	if err != nil {
		return "couldn't load your reminders"
	}
	return reminder.FormatList(reminders)
}

func cmdCancelReminder(c *cmdContext) string {
	id := strings.ToUpper(c.args[0])
	removed, ok, err := c.b.store.RemoveReminder(c.m.Author.ID, id)
	if err != nil {
		return "couldn't load your reminders"
	}
	if !ok {
		return fmt.Sprintf("no reminder with id %s", id)
	}
	c.b.saveStore()
	return fmt.Sprintf("cancelled [%s] %s", removed.ID, removed.Task)
}

func cmdMyStats(c *cmdContext) string {
	stats, err := c.b.store.UserStats(c.m.Author.ID)
	if err != nil {
		return "couldn't load your stats"
	}
	out := fmt.Sprintf("your stats:\n• messages: %d\n• commands: %d\n• reminders set: %d",
		stats.MessagesSent, stats.CommandsUsed, stats.RemindersSet)
	if len(stats.Preferences) > 0 {
		keys := make([]string, 0, len(stats.Preferences))
		for k := range stats.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out += "\npreferences:"
		for _, k := range keys {
			out += fmt.Sprintf("\n• %s = %s", k, stats.Preferences[k])
		}
	}
	return out
}

func cmdPreference(c *cmdContext) string {
	key := strings.ToLower(c.args[0])
	value := strings.Join(c.args[1:], " ")
	if err := c.b.store.SetPreference(c.m.Author.ID, key, value); err != nil {
		return "couldn't save that"
	}
	c.b.saveStore()
	return fmt.Sprintf("noted. %s = %s", key, value)
}

// saveStore persists after a mutation, logging instead of failing the
// command.
func (b *Bot) saveStore() {
	if err := b.store.Save(); err != nil {
		log.Printf("[ERR] Save failed: %v", err)
	}
}
