package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxReplyLen = 1800

// CleanReply normalizes a raw completion for sending: strips a leading
// self-identifying "<persona>:" label (case-insensitive, start of string
// only), removes one pair of wrapping quotes, and truncates oversized
// output.
func CleanReply(persona, reply string) string {
	reply = strings.TrimSpace(reply)

	if persona != "" {
		re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(persona) + `:\s*`)
		reply = re.ReplaceAllString(reply, "")
	}

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}

	if len(reply) > maxReplyLen {
		cut := maxReplyLen
		for cut > 0 && !utf8.RuneStart(reply[cut]) {
			cut--
		}
		reply = reply[:cut] + "\n\n[truncated]"
	}
	return reply
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
