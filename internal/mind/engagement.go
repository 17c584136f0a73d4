package mind

import (
	"sync"
	"time"
)

// Engagement tracks the bot's conversational state: when it last spoke, when
// a user last spoke, the escalating boredom chance, and the admin-controlled
// suppression switches. One instance per process.
type Engagement struct {
	mu            sync.Mutex
	lastEngagedAt time.Time
	lastUserMsgAt time.Time
	boredomChance float64
	timeoutUntil  time.Time
	enabled       bool
}

// NewEngagement returns state as of startup: enabled, with both activity
// stamps set to now so the bot does not treat a fresh start as a long idle.
func NewEngagement(now time.Time) *Engagement {
	return &Engagement{
		lastEngagedAt: now,
		lastUserMsgAt: now,
		enabled:       true,
	}
}

// Enabled reports the kill switch.
func (e *Engagement) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled flips the kill switch.
func (e *Engagement) SetEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = on
}

// Toggle flips the kill switch and returns the new value.
func (e *Engagement) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = !e.enabled
	return e.enabled
}

// TimedOut reports whether the agent is suppressed at now.
func (e *Engagement) TimedOut(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.timeoutUntil)
}

// TimeoutRemaining returns how long the suppression still lasts (zero if not
// timed out).
func (e *Engagement) TimeoutRemaining(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.Before(e.timeoutUntil) {
		return e.timeoutUntil.Sub(now)
	}
	return 0
}

// SetTimeout suppresses the agent until the deadline.
func (e *Engagement) SetTimeout(until time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeoutUntil = until
}

// Resume clears any timeout immediately.
func (e *Engagement) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeoutUntil = time.Time{}
}

// LastUserMessage returns when a user last spoke.
func (e *Engagement) LastUserMessage() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUserMsgAt
}

// MarkUserMessage records a user message at now. Callers stamp this after
// the reply decision so the recency tier compares against the previous
// message, not the one being decided.
func (e *Engagement) MarkUserMessage(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUserMsgAt = now
}

// LastEngaged returns when the bot last spoke or accepted a reply.
func (e *Engagement) LastEngaged() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEngagedAt
}

// MarkEngaged records bot-initiated speech at now and resets the boredom
// chance to zero.
func (e *Engagement) MarkEngaged(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastEngagedAt = now
	e.boredomChance = 0
}

// IdleFor returns how long the bot has gone without engaging, as of now.
func (e *Engagement) IdleFor(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastEngagedAt)
}

// EscalateBoredom raises the boredom chance by step, capped at max, and
// returns the new value.
func (e *Engagement) EscalateBoredom(step, max float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boredomChance += step
	if e.boredomChance > max {
		e.boredomChance = max
	}
	return e.boredomChance
}

// BoredomChance returns the current boredom chance.
func (e *Engagement) BoredomChance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boredomChance
}
