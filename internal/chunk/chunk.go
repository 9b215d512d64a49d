// Package chunk splits long text for Discord's per-message limits.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Lines packs whole lines into chunks of at most limit characters. A line
// longer than limit on its own is cut at the limit. Blank lines are kept
// unless they cannot share a chunk with any text; a chunk is never blank.
func Lines(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	started := false
	flush := func() {
		if started && strings.Trim(cur.String(), "\n") != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		curLen = 0
		started = false
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}

		sep := 0
		if started {
			sep = 1
		}
		if started && curLen+sep+len(runes) > limit {
			flush()
			sep = 0
		}
		if sep == 1 {
			cur.WriteByte('\n')
		}
		cur.WriteString(string(runes))
		curLen += sep + len(runes)
		started = true
	}
	flush()
	return chunks
}
