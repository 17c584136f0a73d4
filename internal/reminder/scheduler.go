package reminder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"exia/internal/storage"
)

// Sender delivers a reminder text to a user's direct channel.
type Sender interface {
	SendDM(userID, content string) error
}

// Scheduler fires due reminders on a fixed cadence. A reminder whose
// delivery keeps failing is dropped once it is maxStale past due.
type Scheduler struct {
	store    *storage.Storage
	sender   Sender
	interval time.Duration
	maxStale time.Duration
}

// NewScheduler creates a dispatch loop with the stock 30s cadence and 24h
// staleness bound.
func NewScheduler(store *storage.Storage, sender Sender) *Scheduler {
	return &Scheduler{
		store:    store,
		sender:   sender,
		interval: 30 * time.Second,
		maxStale: 24 * time.Hour,
	}
}

// Run dispatches until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Dispatch(time.Now())
		}
	}
}

// Dispatch delivers every due reminder once. Successful deliveries remove
// the reminder; failures keep it for the next cycle until maxStale past due,
// then drop it with a log line only.
//
// Delivery happens on a snapshot; the removals are applied through the
// store's locked mutator afterwards, so a reminder created while DMs were
// going out is never lost to the write-back.
func (s *Scheduler) Dispatch(now time.Time) {
	all, err := s.store.Reminders()
	if err != nil {
		log.Printf("[ERR] Reminder dispatch: load failed: %v", err)
		return
	}

	done := make(map[string]bool)
	for userID, list := range all {
		for _, r := range list {
			if now.Before(r.DueAt) {
				continue
			}
			if err := s.sender.SendDM(userID, "reminder: "+r.Task); err != nil {
				if now.Sub(r.DueAt) > s.maxStale {
					log.Printf("[WARN] Dropping undeliverable reminder %s for user %s: %v", r.ID, userID, err)
					done[r.ID] = true
					continue
				}
				log.Printf("[WARN] Reminder %s delivery failed, will retry: %v", r.ID, err)
				continue
			}
			log.Printf("[INFO] Sent reminder %s to user %s", r.ID, userID)
			done[r.ID] = true
		}
	}
	if len(done) == 0 {
		return
	}

	err = s.store.MutateReminders(func(all map[string][]storage.Reminder) bool {
		changed := false
		for userID, list := range all {
			kept := list[:0]
			for _, r := range list {
				if done[r.ID] {
					changed = true
					continue
				}
				kept = append(kept, r)
			}
			if len(kept) == 0 {
				delete(all, userID)
			} else {
				all[userID] = kept
			}
		}
		return changed
	})
	if err != nil {
		log.Printf("[ERR] Reminder dispatch: update failed: %v", err)
		return
	}
	if err := s.store.Save(); err != nil {
		log.Printf("[ERR] Reminder dispatch: save failed: %v", err)
	}
}

// FormatList renders a user's reminders for display, soonest first.
func FormatList(reminders []storage.Reminder) string {
	if len(reminders) == 0 {
		return "you have no reminders set"
	}
	sorted := make([]storage.Reminder, len(reminders))
	copy(sorted, reminders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DueAt.Before(sorted[j].DueAt) })

	out := "your reminders:"
	for _, r := range sorted {
		out += fmt.Sprintf("\n• [%s] %s - %s", r.ID, r.Task, r.DueAt.Format("2006-01-02 15:04"))
	}
	return out
}
