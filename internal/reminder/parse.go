package reminder

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var requestRe = regexp.MustCompile(`(?i)^remind me to (.+?) at (.+)$`)

// Parser extracts a task and due time from a natural-language reminder
// request.
type Parser struct {
	w *when.Parser
}

// NewParser creates a parser with the English and common rule sets.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// ParseRequest matches "remind me to <task> at <time>". ok is false when the
// text is not a reminder request at all; err is set when the request matched
// but the time expression could not be parsed. Past times roll forward per
// Normalize.
func (p *Parser) ParseRequest(content string, now time.Time) (task string, due time.Time, ok bool, err error) {
	m := requestRe.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return "", time.Time{}, false, nil
	}
	task = strings.TrimSpace(m[1])
	timeStr := strings.TrimSpace(m[2])

	r, err := p.w.Parse(timeStr, now)
	if err != nil {
		return "", time.Time{}, true, fmt.Errorf("parse time %q: %w", timeStr, err)
	}
	if r == nil {
		return "", time.Time{}, true, fmt.Errorf("no time expression in %q", timeStr)
	}

	return task, Normalize(r.Time, now), true, nil
}

// Normalize applies the rollover rule: a due time that is not in the future
// advances in whole days until it is. "3pm" said at 5pm means 3pm tomorrow.
func Normalize(due, now time.Time) time.Time {
	for !due.After(now) {
		due = due.Add(24 * time.Hour)
	}
	return due
}

// NewID returns a short unique reminder id, e.g. "R1B9FD3A0".
func NewID() string {
	return "R" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
