package mind

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeFetcher serves a canned newest-first history.
type fakeFetcher struct {
	messages []PlatformMessage
	err      error
	calls    int
}

func (f *fakeFetcher) RecentMessages(channelID string, limit int) ([]PlatformMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) > limit {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func platformMsg(sec int, author, content string, bot bool) PlatformMessage {
	return PlatformMessage{
		AuthorID:   author,
		AuthorName: author,
		Content:    content,
		Timestamp:  base.Add(time.Duration(sec) * time.Second),
		FromBot:    bot,
	}
}

func testBuilder(fetcher HistoryFetcher) (*Builder, *Memory) {
	memory := NewMemory(60, 600*time.Second)
	cfg := DefaultBuilderConfig()
	return NewBuilder(cfg, memory, fetcher, "persona prompt"), memory
}

func TestBuildOrderAndTriggerLast(t *testing.T) {
	now := base.Add(100 * time.Second)
	fetcher := &fakeFetcher{messages: []PlatformMessage{
		platformMsg(90, "bot", "sure", true),
		platformMsg(80, "alice", "you there?", false),
	}}
	b, _ := testBuilder(fetcher)

	trigger := Entry{Role: RoleUser, Content: "hello", Timestamp: now, AuthorID: "alice", AuthorName: "alice"}
	out := b.Build("ch", trigger, now)

	if len(out) != 5 {
		t.Fatalf("expected 5 messages (2 system + 2 history + trigger), got %d", len(out))
	}
	if out[0].Role != RoleSystem || out[1].Role != RoleSystem {
		t.Fatalf("system messages must lead")
	}
	if out[0].Content != "persona prompt" {
		t.Fatalf("persona prompt must be the first system message")
	}

	// History renders oldest first with name labels, bot lines as assistant
	// under the persona name.
	if out[2].Role != RoleUser || out[2].Content != "alice: you there?" {
		t.Fatalf("unexpected first history line: %+v", out[2])
	}
	if out[3].Role != RoleAssistant || out[3].Content != "exia: sure" {
		t.Fatalf("unexpected bot history line: %+v", out[3])
	}

	last := out[len(out)-1]
	if last.Role != RoleUser || last.Content != "alice: hello" {
		t.Fatalf("trigger must be the final user message, got %+v", last)
	}
}

func TestBuildStopsMergingAtTimeWindow(t *testing.T) {
	now := base.Add(1000 * time.Second)
	fetcher := &fakeFetcher{messages: []PlatformMessage{
		platformMsg(900, "alice", "fresh", false),
		platformMsg(100, "alice", "stale", false), // 900s old, outside the 600s window
		platformMsg(950, "alice", "unreachable", false),
	}}
	b, _ := testBuilder(fetcher)

	out := b.Build("ch", Entry{Role: RoleUser, Content: "hi", Timestamp: now, AuthorID: "bob", AuthorName: "bob"}, now)
	for _, m := range out {
		if strings.Contains(m.Content, "stale") {
			t.Fatalf("stale message leaked into context")
		}
		// Newest-first merging stops at the first stale message, so anything
		// behind it is ignored even when itself fresh.
		if strings.Contains(m.Content, "unreachable") {
			t.Fatalf("merge must stop at the window edge")
		}
	}
}

func TestBuildSurvivesFetchFailure(t *testing.T) {
	now := base.Add(10 * time.Second)
	b, _ := testBuilder(&fakeFetcher{err: errors.New("gateway down")})

	out := b.Build("ch", Entry{Role: RoleUser, Content: "hi", Timestamp: now, AuthorID: "bob", AuthorName: "bob"}, now)
	if len(out) != 3 {
		t.Fatalf("expected systems + trigger on fetch failure, got %d messages", len(out))
	}
	if out[len(out)-1].Content != "bob: hi" {
		t.Fatalf("trigger must survive a fetch failure")
	}
}

func TestBuildTrimsOldestToBudget(t *testing.T) {
	now := base.Add(500 * time.Second)
	b, memory := testBuilder(&fakeFetcher{})
	cfg := DefaultBuilderConfig()

	// 20 fat messages, ~400 estimated tokens each, far over the 3000 budget.
	fat := strings.Repeat("word ", 320)
	for i := 0; i < 20; i++ {
		memory.Record("ch", Entry{
			Role:       RoleUser,
			Content:    fat,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			AuthorID:   "alice",
			AuthorName: "alice",
		})
	}

	out := b.Build("ch", Entry{Role: RoleUser, Content: "hi", Timestamp: now, AuthorID: "bob", AuthorName: "bob"}, now)

	conversational := len(out) - 3 // minus systems and trigger
	if conversational < cfg.MinRetained {
		t.Fatalf("trim went below the retained floor: %d", conversational)
	}
	if conversational >= 20 {
		t.Fatalf("expected the budget to trim something, kept %d", conversational)
	}

	// The survivors must be the newest ones.
	first := out[2].Content
	if !strings.HasPrefix(first, "alice: ") {
		t.Fatalf("unexpected first conversational line %q", first)
	}
}

func TestBuildCapsMessageCount(t *testing.T) {
	now := base.Add(500 * time.Second)
	b, memory := testBuilder(&fakeFetcher{})

	for i := 0; i < 45; i++ {
		memory.Record("ch", Entry{
			Role:       RoleUser,
			Content:    "short",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			AuthorID:   "alice",
			AuthorName: "alice",
		})
	}

	out := b.Build("ch", Entry{Role: RoleUser, Content: "hi", Timestamp: now, AuthorID: "bob", AuthorName: "bob"}, now)
	conversational := len(out) - 3
	if conversational != DefaultBuilderConfig().MaxContextMsgs {
		t.Fatalf("expected %d conversational messages, got %d", DefaultBuilderConfig().MaxContextMsgs, conversational)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Fatalf("expected 2 tokens for 8 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
}
