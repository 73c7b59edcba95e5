package compose

import (
	"strings"
	"unicode/utf8"
)

// truncatedMarker is appended when a stored body had to be cut.
const truncatedMarker = "\n(truncated)"

// Excerpt returns the first non-blank line of text, hard-capped at limit
// characters with a trailing ellipsis. It is rune-counted, not byte-counted.
func Excerpt(text string, limit int) string {
	line := ""
	for _, candidate := range strings.Split(text, "\n") {
		if strings.TrimSpace(candidate) != "" {
			line = strings.TrimSpace(candidate)
			break
		}
	}
	if line == "" {
		return ""
	}
	if limit <= 0 || utf8.RuneCountInString(line) <= limit {
		return line
	}
	runes := []rune(line)
	return string(runes[:limit]) + "…"
}

// CapChars limits text to a character budget, appending a truncation marker
// when anything was cut. This cap is rune-based and not byte-safe; use
// TruncateBytes where a byte budget must hold.
func CapChars(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + truncatedMarker
}

// TruncateBytes cuts s so that the UTF-8 byte length of the result is at
// most budget, never splitting a multi-byte character. When a cut happens,
// notice is appended and its bytes are counted against the budget. The cut
// point is found by binary search over candidate prefix byte lengths.
func TruncateBytes(s string, budget int, notice string) string {
	if budget <= 0 {
		return ""
	}
	if len(s) <= budget {
		return s
	}
	avail := budget - len(notice)
	if avail <= 0 {
		// No room for the notice; return the longest valid bare prefix.
		return validPrefix(s, budget)
	}
	return validPrefix(s, avail) + notice
}

// validPrefix returns the longest prefix of s whose UTF-8 byte length is at
// most max, ending on a rune boundary. Binary search over the number of
// runes kept; the encoded byte length is monotone in it.
func validPrefix(s string, max int) string {
	if max >= len(s) {
		return s
	}
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if len(string(runes[:mid])) <= max {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// ChunkRunes splits text into consecutive chunks of at most size runes.
func ChunkRunes(text string, size int) []string {
	if size <= 0 || text == "" {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
