package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const (
	keySettings  = "settings"
	keyReminders = "reminders"
	keyStats     = "stats"
	keyBlacklist = "blacklist"
	guildPrefix  = "guild:"
)

// Settings holds the global bot switches and tunables.
type Settings struct {
	Enabled         bool    `json:"bot_enabled"`
	BoredomEnabled  bool    `json:"boredom_enabled"`
	PhantomEnabled  bool    `json:"phantom_replies_enabled"`
	MaxTokens       int     `json:"max_tokens"`
	ReplyChanceBase float64 `json:"reply_chance_base"`
}

// DefaultSettings returns the settings used before any admin tuning.
func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		BoredomEnabled:  true,
		PhantomEnabled:  true,
		MaxTokens:       200,
		ReplyChanceBase: 0.1,
	}
}

// GuildConfig is the per-guild record, created on first reference and saved
// whole on every mutation.
type GuildConfig struct {
	AdminIDs            []string `json:"admin_ids"`
	DisabledChannelIDs  []string `json:"disabled_channel_ids"`
	BoredomChannelID    string   `json:"boredom_channel_id,omitempty"`
	PresenceChannelID   string   `json:"presence_channel_id,omitempty"`
	ReplyChanceOverride *float64 `json:"reply_chance_override,omitempty"`
}

// IsAdmin reports whether userID is in the guild admin list.
func (g *GuildConfig) IsAdmin(userID string) bool {
	for _, id := range g.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChannelDisabled reports whether channelID is muted for conversation.
func (g *GuildConfig) IsChannelDisabled(channelID string) bool {
	for _, id := range g.DisabledChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// Reminder is one scheduled personal reminder, owned by a single user.
type Reminder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Task      string    `json:"task"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStats tracks per-user interaction counters and preferences.
type UserStats struct {
	MessagesSent int               `json:"messages_sent"`
	CommandsUsed int               `json:"commands_used"`
	RemindersSet int               `json:"reminders_set"`
	LastSeen     time.Time         `json:"last_seen"`
	Preferences  map[string]string `json:"preferences,omitempty"`
}

// Storage is the typed persistence layer over the JSON datastore. The mutex
// serializes read-modify-write sequences: handlers and the scheduler run on
// concurrent goroutines, and the datastore only guards individual Get/Add
// calls, not compound updates.
type Storage struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

// New opens (or creates) the datastore at filePath.
func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close flushes and closes the underlying datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// Save forces an immediate flush to disk.
func (s *Storage) Save() error {
	return s.ds.SaveToFile()
}

// decode re-marshals a datastore value into the typed destination. The
// datastore hands back map[string]any after a reload, so values always go
// through JSON.
func decode(value any, dst any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshalling data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("error unmarshalling record: %w", err)
	}
	return nil
}

// Settings returns the global settings, falling back to defaults.
func (s *Storage) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, exists := s.ds.Get(keySettings)
	if !exists {
		return DefaultSettings()
	}
	settings := DefaultSettings()
	if err := decode(value, &settings); err != nil {
		return DefaultSettings()
	}
	return settings
}

// SetSettings overwrites the global settings.
func (s *Storage) SetSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Add(keySettings, settings)
}

// GuildConfig returns the config for guildID, creating an empty record on
// first reference.
func (s *Storage) GuildConfig(guildID string) (*GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, exists := s.ds.Get(guildPrefix + guildID)
	if !exists {
		cfg := &GuildConfig{}
		s.ds.Add(guildPrefix+guildID, cfg)
		return cfg, nil
	}
	var cfg GuildConfig
	if err := decode(value, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetGuildConfig persists the whole guild record.
func (s *Storage) SetGuildConfig(guildID string, cfg *GuildConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Add(guildPrefix+guildID, cfg)
}

// Reminders returns all reminders grouped by user id.
func (s *Storage) Reminders() (map[string][]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadReminders()
}

func (s *Storage) loadReminders() (map[string][]Reminder, error) {
	value, exists := s.ds.Get(keyReminders)
	if !exists {
		return map[string][]Reminder{}, nil
	}
	var all map[string][]Reminder
	if err := decode(value, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// UserReminders returns the reminders owned by userID, soonest first.
func (s *Storage) UserReminders(userID string) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadReminders()
	if err != nil {
		return nil, err
	}
	return all[userID], nil
}

// AddReminder appends a reminder to its owner's list.
func (s *Storage) AddReminder(r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadReminders()
	if err != nil {
		return err
	}
	all[r.UserID] = append(all[r.UserID], r)
	s.ds.Add(keyReminders, all)
	return nil
}

// RemoveReminder deletes the reminder with id from userID's list. Returns the
// removed reminder, or false if no such id exists.
func (s *Storage) RemoveReminder(userID, id string) (Reminder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadReminders()
	if err != nil {
		return Reminder{}, false, err
	}
	list := all[userID]
	for i, r := range list {
		if r.ID == id {
			all[userID] = append(list[:i], list[i+1:]...)
			if len(all[userID]) == 0 {
				delete(all, userID)
			}
			s.ds.Add(keyReminders, all)
			return r, true, nil
		}
	}
	return Reminder{}, false, nil
}

// MutateReminders loads the full reminder map, applies fn under the storage
// lock, and stores the result if fn reports a change. The dispatch loop uses
// this so removals of delivered reminders cannot clobber a reminder added
// between its snapshot and its write-back.
func (s *Storage) MutateReminders(fn func(all map[string][]Reminder) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadReminders()
	if err != nil {
		return err
	}
	if fn(all) {
		s.ds.Add(keyReminders, all)
	}
	return nil
}

// UserStats returns stats for userID (zero record if none yet).
func (s *Storage) UserStats(userID string) (UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allStats()
	if err != nil {
		return UserStats{}, err
	}
	return all[userID], nil
}

// TrackedUsers returns how many users have recorded stats.
func (s *Storage) TrackedUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allStats()
	if err != nil {
		return 0
	}
	return len(all)
}

// BumpStat increments one counter for userID and stamps last-seen.
// statType is "message", "command" or "reminder".
func (s *Storage) BumpStat(userID, statType string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allStats()
	if err != nil {
		return err
	}
	stats := all[userID]
	stats.LastSeen = now
	switch statType {
	case "message":
		stats.MessagesSent++
	case "command":
		stats.CommandsUsed++
	case "reminder":
		stats.RemindersSet++
	}
	all[userID] = stats
	s.ds.Add(keyStats, all)
	return nil
}

// SetPreference stores a personal key/value preference for userID.
func (s *Storage) SetPreference(userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allStats()
	if err != nil {
		return err
	}
	stats := all[userID]
	if stats.Preferences == nil {
		stats.Preferences = make(map[string]string)
	}
	stats.Preferences[key] = value
	all[userID] = stats
	s.ds.Add(keyStats, all)
	return nil
}

func (s *Storage) allStats() (map[string]UserStats, error) {
	value, exists := s.ds.Get(keyStats)
	if !exists {
		return map[string]UserStats{}, nil
	}
	var all map[string]UserStats
	if err := decode(value, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// Blacklist returns the set of blocked user ids.
func (s *Storage) Blacklist() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBlacklist()
}

func (s *Storage) loadBlacklist() map[string]bool {
	value, exists := s.ds.Get(keyBlacklist)
	if !exists {
		return map[string]bool{}
	}
	var ids []string
	if err := decode(value, &ids); err != nil {
		return map[string]bool{}
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// IsBlacklisted reports whether userID is blocked.
func (s *Storage) IsBlacklisted(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBlacklist()[userID]
}

// AddToBlacklist blocks userID. No-op if already blocked.
func (s *Storage) AddToBlacklist(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.loadBlacklist()
	if set[userID] {
		return
	}
	set[userID] = true
	s.ds.Add(keyBlacklist, setToList(set))
}

// RemoveFromBlacklist unblocks userID. Returns false if it wasn't blocked.
func (s *Storage) RemoveFromBlacklist(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.loadBlacklist()
	if !set[userID] {
		return false
	}
	delete(set, userID)
	s.ds.Add(keyBlacklist, setToList(set))
	return true
}

func setToList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
