package mind

import (
	"sync"
	"time"
)

// Gate holds the two per-user throttles: one for conversational replies and a
// shorter one for commands. Plain timestamp comparisons, no external state.
type Gate struct {
	mu            sync.Mutex
	replyLast     map[string]time.Time
	commandLast   map[string]time.Time
	replyWindow   time.Duration
	commandWindow time.Duration
}

// NewGate creates a gate with the given cooldown windows.
func NewGate(replyWindow, commandWindow time.Duration) *Gate {
	return &Gate{
		replyLast:     make(map[string]time.Time),
		commandLast:   make(map[string]time.Time),
		replyWindow:   replyWindow,
		commandWindow: commandWindow,
	}
}

// ReplyReady reports whether userID is outside their reply cooldown. It never
// consumes the cooldown: a suppressed reply leaves all stamps untouched.
func (g *Gate) ReplyReady(userID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.replyLast[userID]
	return !ok || now.Sub(last) >= g.replyWindow
}

// TryReply checks and stamps userID's reply cooldown in one critical
// section. Handlers run on concurrent event goroutines; a separate
// check-then-stamp would let a burst from the same user pass the gate
// twice.
func (g *Gate) TryReply(userID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.replyLast[userID]; ok && now.Sub(last) < g.replyWindow {
		return false
	}
	g.replyLast[userID] = now
	return true
}

// CommandReady checks the command cooldown for userID. On success the stamp
// is consumed; on failure it returns the remaining wait.
func (g *Gate) CommandReady(userID string, now time.Time) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.commandLast[userID]; ok {
		if elapsed := now.Sub(last); elapsed < g.commandWindow {
			return false, g.commandWindow - elapsed
		}
	}
	g.commandLast[userID] = now
	return true, 0
}
