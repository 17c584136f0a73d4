package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openStore(t *testing.T, path string) *Storage {
	t.Helper()
	store, err := New(path)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	return store
}

func TestSettingsDefaultsAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := openStore(t, path)

	got := store.Settings()
	if got != DefaultSettings() {
		t.Fatalf("expected defaults on a fresh store, got %+v", got)
	}

	got.MaxTokens = 500
	got.PhantomEnabled = false
	store.SetSettings(got)
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened := openStore(t, path)
	defer reopened.Close()
	loaded := reopened.Settings()
	if loaded.MaxTokens != 500 || loaded.PhantomEnabled {
		t.Fatalf("settings did not survive a reload: %+v", loaded)
	}
	if !loaded.Enabled || !loaded.BoredomEnabled {
		t.Fatalf("untouched fields must keep their values: %+v", loaded)
	}
}

func TestGuildConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := openStore(t, path)

	cfg, err := store.GuildConfig("g1")
	if err != nil {
		t.Fatalf("first reference: %v", err)
	}
	if len(cfg.AdminIDs) != 0 || cfg.ReplyChanceOverride != nil {
		t.Fatalf("expected an empty record on first reference: %+v", cfg)
	}

	override := 0.3
	cfg.AdminIDs = []string{"u1", "u2"}
	cfg.DisabledChannelIDs = []string{"c1"}
	cfg.BoredomChannelID = "c9"
	cfg.ReplyChanceOverride = &override
	store.SetGuildConfig("g1", cfg)
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened := openStore(t, path)
	defer reopened.Close()
	loaded, err := reopened.GuildConfig("g1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.IsAdmin("u2") || loaded.IsAdmin("u3") {
		t.Fatalf("admin list wrong after reload: %+v", loaded.AdminIDs)
	}
	if !loaded.IsChannelDisabled("c1") {
		t.Fatalf("disabled channels lost")
	}
	if loaded.BoredomChannelID != "c9" {
		t.Fatalf("boredom channel lost")
	}
	if loaded.ReplyChanceOverride == nil || *loaded.ReplyChanceOverride != 0.3 {
		t.Fatalf("override lost: %v", loaded.ReplyChanceOverride)
	}
}

func TestRemindersAddRemoveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := openStore(t, path)

	due := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	r1 := Reminder{ID: "RAAAAAAAA", UserID: "u1", Task: "stretch", DueAt: due, CreatedAt: due.Add(-time.Hour)}
	r2 := Reminder{ID: "RBBBBBBBB", UserID: "u1", Task: "sleep", DueAt: due.Add(time.Hour), CreatedAt: due}
	if err := store.AddReminder(r1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddReminder(r2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened := openStore(t, path)
	defer reopened.Close()

	list, err := reopened.UserReminders("u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(list))
	}
	if !list[0].DueAt.Equal(due) {
		t.Fatalf("due time did not round-trip: %v", list[0].DueAt)
	}

	removed, ok, err := reopened.RemoveReminder("u1", "RAAAAAAAA")
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if removed.Task != "stretch" {
		t.Fatalf("removed the wrong reminder: %+v", removed)
	}
	if _, ok, _ := reopened.RemoveReminder("u1", "RAAAAAAAA"); ok {
		t.Fatalf("double remove must report not found")
	}
	left, _ := reopened.UserReminders("u1")
	if len(left) != 1 || left[0].ID != "RBBBBBBBB" {
		t.Fatalf("unexpected remaining reminders: %v", left)
	}
}

func TestBlacklistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := openStore(t, path)

	store.AddToBlacklist("u1")
	store.AddToBlacklist("u1") // no-op
	if !store.IsBlacklisted("u1") || store.IsBlacklisted("u2") {
		t.Fatalf("blacklist membership wrong")
	}
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened := openStore(t, path)
	defer reopened.Close()
	if !reopened.IsBlacklisted("u1") {
		t.Fatalf("blacklist lost on reload")
	}
	if !reopened.RemoveFromBlacklist("u1") {
		t.Fatalf("remove must succeed for a listed user")
	}
	if reopened.RemoveFromBlacklist("u1") {
		t.Fatalf("second remove must report not listed")
	}
}

func TestConcurrentBumpStatLosesNothing(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "data.json"))
	defer store.Close()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := store.BumpStat("u1", "message", now); err != nil {
					t.Errorf("bump: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	stats, err := store.UserStats("u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MessagesSent != workers*perWorker {
		t.Fatalf("lost increments: expected %d, got %d", workers*perWorker, stats.MessagesSent)
	}
}

func TestConcurrentAddRemindersLosesNothing(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "data.json"))
	defer store.Close()

	due := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	const workers = 8

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r := Reminder{ID: fmt.Sprintf("R%08d", n), UserID: "u1", Task: "t", DueAt: due, CreatedAt: due}
			if err := store.AddReminder(r); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, err := store.UserReminders("u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != workers {
		t.Fatalf("lost reminders: expected %d, got %d", workers, len(list))
	}
}

func TestStatsAndPreferences(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "data.json"))
	defer store.Close()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store.BumpStat("u1", "message", now)
	store.BumpStat("u1", "message", now.Add(time.Minute))
	store.BumpStat("u1", "command", now.Add(2*time.Minute))
	store.BumpStat("u1", "reminder", now.Add(3*time.Minute))
	store.BumpStat("u2", "message", now)

	stats, err := store.UserStats("u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MessagesSent != 2 || stats.CommandsUsed != 1 || stats.RemindersSet != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if !stats.LastSeen.Equal(now.Add(3 * time.Minute)) {
		t.Fatalf("last seen not updated: %v", stats.LastSeen)
	}
	if store.TrackedUsers() != 2 {
		t.Fatalf("expected 2 tracked users, got %d", store.TrackedUsers())
	}

	if err := store.SetPreference("u1", "color", "green"); err != nil {
		t.Fatalf("preference: %v", err)
	}
	stats, _ = store.UserStats("u1")
	if stats.Preferences["color"] != "green" {
		t.Fatalf("preference lost: %+v", stats.Preferences)
	}
	if stats.MessagesSent != 2 {
		t.Fatalf("setting a preference must not clobber counters: %+v", stats)
	}
}
