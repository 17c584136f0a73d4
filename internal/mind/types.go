package mind

import "time"

// Message roles as the completion endpoint expects them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Entry is one remembered message in a channel window. Content is stored raw;
// display-name prefixes are applied when the context is assembled.
type Entry struct {
	Role       string    `json:"role"` // "user" | "assistant"
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
}

// PlatformMessage is a message as fetched from the chat platform history,
// newest-first.
type PlatformMessage struct {
	AuthorID   string
	AuthorName string
	Content    string
	Timestamp  time.Time
	FromBot    bool
}

// HistoryFetcher retrieves recent channel history, newest-first, bounded by
// limit. The Discord binding implements this at the boundary.
type HistoryFetcher interface {
	RecentMessages(channelID string, limit int) ([]PlatformMessage, error)
}
