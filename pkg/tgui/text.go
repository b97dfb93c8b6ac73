package tgui

import (
	"strings"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// Chunk splits s into pieces of at most limit runes. It cuts after the last
// newline inside the window when that keeps the piece at least a third full,
// otherwise it cuts at the limit. Joining the pieces gives back s.
func Chunk(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageRunes
	}
	if utf8.RuneCountInString(s) <= limit {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	rs := []rune(s)
	out := make([]string, 0, len(rs)/limit+1)
	for start := 0; start < len(rs); {
		end := start + limit
		if end >= len(rs) {
			out = append(out, string(rs[start:]))
			break
		}
		for i := end - 1; i > start+limit/3; i-- {
			if rs[i] == '\n' {
				end = i + 1
				break
			}
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// ChunkTrimmed is Chunk with surrounding newlines removed from every piece and
// blank pieces dropped, which is what a chat should display.
func ChunkTrimmed(s string, limit int) []string {
	parts := Chunk(s, limit)
	out := parts[:0]
	for _, p := range parts {
		p = strings.Trim(p, "\n")
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
