package extract

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"
)

// degradedBanner prefixes fallback output so readers know the text is a
// best-effort reconstruction, not a faithful parse.
const degradedBanner = ":warning: This message could not be parsed normally. Showing best-effort text.\n\n"

// minRecoveredRunes is the shortest UTF-16 run accepted as a message body.
const minRecoveredRunes = 48

// calendarClasses are Outlook message classes that describe meetings, not
// mail. The class name is stored both as ANSI and UTF-16LE in the container.
var calendarClasses = []string{
	"IPM.Schedule.Meeting",
	"IPM.Appointment",
}

// extractBinary handles the Outlook compound-file format. It never fails:
// calendar variants short-circuit to a skip sentinel, a recoverable UTF-16
// body is used as-is, and everything else goes through the byte-scan
// fallback with a visible banner.
func (e *Extractor) extractBinary(data []byte) Result {
	if isCalendarMessage(data) {
		return Result{Skip: true}
	}
	if body, ok := recoverUTF16Body(data); ok {
		return Result{Text: body}
	}
	return Result{
		Text:     degradedBanner + scanFallback(data),
		Degraded: true,
	}
}

func isCalendarMessage(data []byte) bool {
	for _, class := range calendarClasses {
		if bytes.Contains(data, []byte(class)) {
			return true
		}
		if bytes.Contains(data, utf16LEBytes(class)) {
			return true
		}
	}
	return false
}

func utf16LEBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

// recoverUTF16Body scans for the longest run of plausible UTF-16LE text in
// the raw container. Outlook stores string properties as UTF-16LE streams,
// so the body usually survives this even without a structured CFB walk.
// Both byte alignments are tried since stream offsets are not known here.
func recoverUTF16Body(data []byte) (string, bool) {
	best := ""
	for offset := 0; offset <= 1; offset++ {
		if run := longestUTF16Run(data[offset:]); utf8.RuneCountInString(run) > utf8.RuneCountInString(best) {
			best = run
		}
	}
	if utf8.RuneCountInString(best) < minRecoveredRunes {
		return "", false
	}
	return collapseWhitespace(best), true
}

func longestUTF16Run(data []byte) string {
	var (
		units []uint16
		best  string
	)
	flush := func() {
		if len(units) == 0 {
			return
		}
		decoded := string(utf16.Decode(units))
		if utf8.RuneCountInString(decoded) > utf8.RuneCountInString(best) {
			best = decoded
		}
		units = units[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i : i+2])
		if isTextUnit(u) {
			units = append(units, u)
			continue
		}
		flush()
	}
	flush()
	return best
}

func isTextUnit(u uint16) bool {
	switch u {
	case '\n', '\r', '\t':
		return true
	}
	if u < 0x20 {
		return false
	}
	if u == 0x7F {
		return false
	}
	// Surrogate halves are kept so paired characters survive decoding.
	return true
}
