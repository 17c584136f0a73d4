package mind

import (
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"exia/internal/ai"
)

// CharsPerToken is the rough chars-per-token ratio used for budget estimates.
const CharsPerToken = 4

// EstimateTokens gives a cheap token estimate (UTF-8 runes / 4).
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / CharsPerToken
}

// BuilderConfig bounds the context assembled for one completion request.
type BuilderConfig struct {
	FetchLimit     int           // platform history fetch bound
	TimeWindow     time.Duration // ignore anything older than this
	MaxContextMsgs int           // conversational message cap
	TokenBudget    int           // estimated-token ceiling for the whole prompt
	MinRetained    int           // never trim below this many conversational messages
	PersonaName    string        // label for the bot's own past messages
}

// DefaultBuilderConfig returns the stock bounds.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		FetchLimit:     50,
		TimeWindow:     600 * time.Second,
		MaxContextMsgs: 30,
		TokenBudget:    3000,
		MinRetained:    10,
		PersonaName:    "exia",
	}
}

// Builder assembles the ordered, budgeted message list for the language
// model: persona prompt, labeling instruction, merged window, triggering
// message last. Deterministic given identical memory, history and clock.
type Builder struct {
	cfg     BuilderConfig
	memory  *Memory
	fetcher HistoryFetcher
	persona string // system persona prompt text
}

// NewBuilder wires the context builder to the memory store and history
// source.
func NewBuilder(cfg BuilderConfig, memory *Memory, fetcher HistoryFetcher, personaPrompt string) *Builder {
	return &Builder{cfg: cfg, memory: memory, fetcher: fetcher, persona: personaPrompt}
}

// labelInstruction explains the name-prefix convention to the model.
func (b *Builder) labelInstruction() string {
	return fmt.Sprintf(
		"You're seeing the recent conversation history. "+
			"Messages from '%s' are your own past responses. "+
			"Pay attention to the flow of conversation and respond naturally. "+
			"Remember what people were talking about and stay engaged.",
		b.cfg.PersonaName)
}

// Build produces the completion request messages for a triggering entry.
// Platform history is merged into memory first (deduplicated), then the
// bounded window is rendered behind the two system messages and trimmed to
// the token budget, oldest conversational messages first. The triggering
// message is always the final entry.
func (b *Builder) Build(channelID string, trigger Entry, now time.Time) []ai.Message {
	b.mergeHistory(channelID, now)

	window := b.memory.Window(channelID, now, b.cfg.TimeWindow, b.cfg.MaxContextMsgs)

	system := []ai.Message{
		{Role: RoleSystem, Content: b.persona},
		{Role: RoleSystem, Content: b.labelInstruction()},
	}

	conversation := make([]ai.Message, 0, len(window))
	for _, e := range window {
		conversation = append(conversation, ai.Message{Role: e.Role, Content: b.line(e)})
	}

	conversation = b.trimToBudget(system, conversation)

	out := make([]ai.Message, 0, len(system)+len(conversation)+1)
	out = append(out, system...)
	out = append(out, conversation...)
	out = append(out, ai.Message{Role: RoleUser, Content: b.line(trigger)})

	log.Printf("[INFO] Built context with %d messages for channel %s", len(out), channelID)
	return out
}

// mergeHistory pulls fresh platform history (newest-first) into memory,
// stopping at the first message older than the time window.
func (b *Builder) mergeHistory(channelID string, now time.Time) {
	history, err := b.fetcher.RecentMessages(channelID, b.cfg.FetchLimit)
	if err != nil {
		log.Printf("[WARN] History fetch failed for channel %s: %v", channelID, err)
		return
	}

	fresh := make([]PlatformMessage, 0, len(history))
	for _, msg := range history {
		if now.Sub(msg.Timestamp) > b.cfg.TimeWindow {
			break
		}
		fresh = append(fresh, msg)
	}

	// Oldest first, so memory timestamps stay non-decreasing.
	for i := len(fresh) - 1; i >= 0; i-- {
		msg := fresh[i]
		role, name := RoleUser, msg.AuthorName
		if msg.FromBot {
			role, name = RoleAssistant, b.cfg.PersonaName
		}
		b.memory.Record(channelID, Entry{
			Role:       role,
			Content:    msg.Content,
			Timestamp:  msg.Timestamp,
			AuthorID:   msg.AuthorID,
			AuthorName: name,
		})
	}
}

// line renders an entry with its display-name prefix. The bot's own past
// messages carry the persona name.
func (b *Builder) line(e Entry) string {
	name := e.AuthorName
	if e.Role == RoleAssistant {
		name = b.cfg.PersonaName
	}
	return name + ": " + e.Content
}

// trimToBudget drops the oldest conversational messages until the estimated
// total fits the token budget or only MinRetained remain. System messages
// are never dropped.
func (b *Builder) trimToBudget(system, conversation []ai.Message) []ai.Message {
	total := 0
	for _, m := range system {
		total += EstimateTokens(m.Content)
	}
	for _, m := range conversation {
		total += EstimateTokens(m.Content)
	}
	for total > b.cfg.TokenBudget && len(conversation) > b.cfg.MinRetained {
		total -= EstimateTokens(conversation[0].Content)
		conversation = conversation[1:]
	}
	return conversation
}
