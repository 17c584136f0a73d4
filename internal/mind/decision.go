package mind

import "time"

// Action is the outcome of a reply decision.
type Action int

const (
	Skip Action = iota
	Reply
	React
)

// DecisionConfig holds the probability tiers and windows for Decide.
type DecisionConfig struct {
	ReactChance         float64       // emoji-only path, sampled before reply logic
	RecentGap           time.Duration // gap to previous user message for the recency tier
	EngagedWindow       time.Duration // "just engaged" window inside the recency tier
	ActiveWindow        time.Duration // sustained-activity window since last engagement
	RecentEngagedChance float64       // recency tier chance while just engaged
	FloorChance         float64       // idle / not-engaged floor
}

// DefaultDecisionConfig returns the tuning the bot ships with.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		ReactChance:         0.003,
		RecentGap:           5 * time.Second,
		EngagedWindow:       30 * time.Second,
		ActiveWindow:        180 * time.Second,
		RecentEngagedChance: 0.9,
		FloorChance:         0.05,
	}
}

// Engine decides, per inbound message, whether to skip, reply, or react.
// Randomness is injected so decisions are reproducible under test.
type Engine struct {
	cfg        DecisionConfig
	engagement *Engagement
	gate       *Gate
	random     func() float64
}

// NewEngine wires the decision config to the shared engagement state and
// cooldown gate. random must return values in [0, 1).
func NewEngine(cfg DecisionConfig, engagement *Engagement, gate *Gate, random func() float64) *Engine {
	return &Engine{cfg: cfg, engagement: engagement, gate: gate, random: random}
}

// Input bundles everything Decide needs about one inbound message.
type Input struct {
	UserID          string
	Mentioned       bool
	Now             time.Time
	BaseChance      float64  // global base reply chance
	GuildOverride   *float64 // per-guild override, wins over BaseChance
	PhantomEnabled  bool
	ChannelDisabled bool
}

// Decide runs the gating and probability tiers. A Reply outcome consumes the
// user's reply cooldown atomically, so concurrent handler goroutines cannot
// both accept within the window; skips and reacts leave the stamps untouched.
// The engagement side of the commit still goes through Accept before the
// generation call suspends.
//
// Priority: suppression checks, then the react sample (which short-circuits
// even mentions), then mention override, then the tiered chance, then the
// per-user cooldown.
func (e *Engine) Decide(in Input) Action {
	if in.ChannelDisabled || !e.engagement.Enabled() || e.engagement.TimedOut(in.Now) {
		return Skip
	}

	if e.random() < e.cfg.ReactChance {
		return React
	}

	var wantReply bool
	switch {
	case in.Mentioned:
		wantReply = true
	case !in.PhantomEnabled:
		wantReply = false
	default:
		wantReply = e.random() < e.chance(in)
	}
	if !wantReply {
		return Skip
	}

	if !e.gate.TryReply(in.UserID, in.Now) {
		return Skip
	}
	return Reply
}

// chance computes the tiered phantom-reply probability.
func (e *Engine) chance(in Input) float64 {
	base := in.BaseChance
	if in.GuildOverride != nil {
		base = *in.GuildOverride
	}

	userGap := in.Now.Sub(e.engagement.LastUserMessage())
	engagedGap := in.Now.Sub(e.engagement.LastEngaged())

	switch {
	case userGap < e.cfg.RecentGap:
		if engagedGap < e.cfg.EngagedWindow {
			return e.cfg.RecentEngagedChance
		}
		return e.cfg.FloorChance
	case engagedGap < e.cfg.ActiveWindow:
		return base
	default:
		return e.cfg.FloorChance
	}
}

// Accept commits the engagement side of an accepted reply. The cooldown
// stamp already happened inside Decide; this must still run before the
// generation call suspends so the activity tiers see the bot as engaged.
func (e *Engine) Accept(now time.Time) {
	e.engagement.MarkEngaged(now)
}
