package reminder

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"exia/internal/storage"
)

type fakeSender struct {
	sent  []string // "userID|content"
	fail  bool
	calls int
}

func (f *fakeSender) SendDM(userID, content string) error {
	f.calls++
	if f.fail {
		return errors.New("dm closed")
	}
	f.sent = append(f.sent, userID+"|"+content)
	return nil
}

func testStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test_data.json"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addReminder(t *testing.T, store *storage.Storage, userID, task string, due time.Time) storage.Reminder {
	t.Helper()
	r := storage.Reminder{
		ID:        NewID(),
		UserID:    userID,
		Task:      task,
		DueAt:     due,
		CreatedAt: due.Add(-time.Hour),
	}
	if err := store.AddReminder(r); err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	return r
}

func TestDispatchSendsDueAndKeepsFuture(t *testing.T) {
	store := testStore(t)
	sender := &fakeSender{}
	s := NewScheduler(store, sender)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	addReminder(t, store, "u1", "stretch", now.Add(-time.Minute))
	future := addReminder(t, store, "u1", "sleep", now.Add(time.Hour))

	s.Dispatch(now)

	if len(sender.sent) != 1 || sender.sent[0] != "u1|reminder: stretch" {
		t.Fatalf("unexpected deliveries: %v", sender.sent)
	}
	left, err := store.UserReminders("u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(left) != 1 || left[0].ID != future.ID {
		t.Fatalf("expected only the future reminder to remain, got %v", left)
	}
}

func TestDispatchRetriesFailedDelivery(t *testing.T) {
	store := testStore(t)
	sender := &fakeSender{fail: true}
	s := NewScheduler(store, sender)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	addReminder(t, store, "u1", "stretch", now.Add(-time.Minute))
	s.Dispatch(now)

	left, err := store.UserReminders("u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("failed delivery must keep the reminder, got %d", len(left))
	}

	// Delivery recovers on a later cycle.
	sender.fail = false
	s.Dispatch(now.Add(time.Minute))
	if left, _ = store.UserReminders("u1"); len(left) != 0 {
		t.Fatalf("expected delivery on retry, %d left", len(left))
	}
}

func TestDispatchDropsStaleUndeliverable(t *testing.T) {
	store := testStore(t)
	sender := &fakeSender{fail: true}
	s := NewScheduler(store, sender)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	addReminder(t, store, "u1", "ancient", now.Add(-25*time.Hour))
	s.Dispatch(now)

	left, err := store.UserReminders("u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("reminder a day past due must be dropped, got %d", len(left))
	}
}

type senderFunc func(userID, content string) error

func (f senderFunc) SendDM(userID, content string) error { return f(userID, content) }

func TestDispatchKeepsReminderAddedDuringDelivery(t *testing.T) {
	store := testStore(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	due := addReminder(t, store, "u1", "stretch", now.Add(-time.Minute))

	// A reminder created while the DM is in flight must survive the
	// write-back that removes the delivered one.
	late := storage.Reminder{ID: NewID(), UserID: "u2", Task: "late", DueAt: now.Add(time.Hour), CreatedAt: now}
	sender := senderFunc(func(userID, content string) error {
		if err := store.AddReminder(late); err != nil {
			t.Errorf("concurrent add: %v", err)
		}
		return nil
	})

	NewScheduler(store, sender).Dispatch(now)

	if left, _ := store.UserReminders("u1"); len(left) != 0 {
		t.Fatalf("delivered reminder %s must be removed, got %v", due.ID, left)
	}
	kept, err := store.UserReminders("u2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != late.ID {
		t.Fatalf("reminder added during delivery was lost: %v", kept)
	}
}

func TestFormatList(t *testing.T) {
	if got := FormatList(nil); got != "you have no reminders set" {
		t.Fatalf("unexpected empty listing %q", got)
	}

	due := time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC)
	got := FormatList([]storage.Reminder{
		{ID: "RBBBBBBBB", Task: "later", DueAt: due.Add(time.Hour)},
		{ID: "RAAAAAAAA", Task: "sooner", DueAt: due},
	})
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 lines, got %q", got)
	}
	if !strings.Contains(lines[1], "RAAAAAAAA") || !strings.Contains(lines[1], "2026-03-02 15:04") {
		t.Fatalf("listing must be soonest first with formatted time, got %q", lines[1])
	}
}
