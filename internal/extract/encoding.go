package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

var (
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	newlineRunPattern = regexp.MustCompile(`\n{3,}`)
)

// scanFallback decodes the raw bytes under the candidate encodings, keeps
// the one with the highest letter score, strips control bytes and collapses
// whitespace. The output is readable, not faithful.
func scanFallback(data []byte) string {
	candidates := []string{
		strings.ToValidUTF8(string(data), " "),
		decodeWindows1251(data),
	}
	best := ""
	bestScore := -1
	for _, candidate := range candidates {
		if score := letterScore(candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return collapseWhitespace(stripControl(best))
}

func decodeWindows1251(data []byte) string {
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// letterScore counts characters a reader would recognize as text.
func letterScore(s string) int {
	score := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			score++
		}
	}
	return score
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t':
			return r
		case '\r':
			return -1
		}
		if unicode.IsControl(r) || !unicode.IsGraphic(r) {
			return ' '
		}
		return r
	}, s)
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRunPattern.ReplaceAllString(s, " ")
	s = newlineRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
