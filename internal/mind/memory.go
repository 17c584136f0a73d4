package mind

import (
	"sync"
	"time"
)

// BotReply is one of the bot's own recent replies, kept in a small ring
// independent of the conversation window (debug/summary surface).
type BotReply struct {
	Content string
	At      time.Time
}

// Memory holds per-channel sliding windows of recent messages plus a bounded
// ring of the bot's own replies. Entries are deduplicated by
// (timestamp, author) and pruned by age and count. Thread-safe: message
// handlers run on the session's event goroutines.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string][]Entry
	seen          map[string]map[dedupKey]struct{}
	replies       map[string][]BotReply
	maxEntries    int
	maxAge        time.Duration
	replyCap      int
}

type dedupKey struct {
	ts     int64
	author string
}

// NewMemory creates a store with the given per-channel entry cap and age
// window. The bot reply ring holds 20 entries per channel.
func NewMemory(maxEntries int, maxAge time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 60
	}
	return &Memory{
		conversations: make(map[string][]Entry),
		seen:          make(map[string]map[dedupKey]struct{}),
		replies:       make(map[string][]BotReply),
		maxEntries:    maxEntries,
		maxAge:        maxAge,
		replyCap:      20,
	}
}

// Record appends an entry to the channel window. Entries sharing a
// (timestamp, author) key with an existing entry are dropped. Timestamps stay
// non-decreasing: an out-of-order entry is inserted at its position.
func (m *Memory) Record(channelID string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupKey{ts: e.Timestamp.UnixNano(), author: e.AuthorID}
	keys := m.seen[channelID]
	if keys == nil {
		keys = make(map[dedupKey]struct{})
		m.seen[channelID] = keys
	}
	if _, dup := keys[key]; dup {
		return
	}
	keys[key] = struct{}{}

	entries := m.conversations[channelID]
	if n := len(entries); n > 0 && e.Timestamp.Before(entries[n-1].Timestamp) {
		i := n
		for i > 0 && e.Timestamp.Before(entries[i-1].Timestamp) {
			i--
		}
		entries = append(entries, Entry{})
		copy(entries[i+1:], entries[i:])
		entries[i] = e
	} else {
		entries = append(entries, e)
	}

	m.conversations[channelID] = m.pruneLocked(channelID, entries, e.Timestamp)
}

// pruneLocked drops entries older than the age window relative to now and
// trims the window to the most recent maxEntries. Dedup keys of evicted
// entries are released so the key set cannot grow unbounded.
func (m *Memory) pruneLocked(channelID string, entries []Entry, now time.Time) []Entry {
	cutoff := now.Add(-m.maxAge)
	start := 0
	for start < len(entries) && entries[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(entries) - start - m.maxEntries; over > 0 {
		start += over
	}
	if start == 0 {
		return entries
	}
	keys := m.seen[channelID]
	for _, e := range entries[:start] {
		delete(keys, dedupKey{ts: e.Timestamp.UnixNano(), author: e.AuthorID})
	}
	return append(entries[:0:0], entries[start:]...)
}

// Window returns an oldest-to-newest copy of entries no older than maxAge at
// now, truncated to the most recent maxCount. Unknown channels yield an empty
// slice.
func (m *Memory) Window(channelID string, now time.Time, maxAge time.Duration, maxCount int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.conversations[channelID]
	cutoff := now.Add(-maxAge)
	start := 0
	for start < len(entries) && entries[start].Timestamp.Before(cutoff) {
		start++
	}
	live := entries[start:]
	if maxCount > 0 && len(live) > maxCount {
		live = live[len(live)-maxCount:]
	}
	out := make([]Entry, len(live))
	copy(out, live)
	return out
}

// RecordReply appends one of the bot's own replies to the channel ring.
func (m *Memory) RecordReply(channelID, content string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.replies[channelID], BotReply{Content: content, At: at})
	if len(ring) > m.replyCap {
		ring = ring[len(ring)-m.replyCap:]
	}
	m.replies[channelID] = ring
}

// RecentReplies returns a copy of the channel's bot reply ring.
func (m *Memory) RecentReplies(channelID string) []BotReply {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BotReply, len(m.replies[channelID]))
	copy(out, m.replies[channelID])
	return out
}

// Clear empties both the conversation window and the reply ring for the
// channel. Total and idempotent.
func (m *Memory) Clear(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, channelID)
	delete(m.seen, channelID)
	delete(m.replies, channelID)
}

// Summary returns the entry and reply counts for a channel.
func (m *Memory) Summary(channelID string) (entries, replies int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations[channelID]), len(m.replies[channelID])
}
