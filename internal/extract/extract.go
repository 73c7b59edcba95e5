package extract

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Format is the closed set of mail container formats the extractor
// understands. Classification happens once, from filename and mimetype,
// and every caller matches the result exhaustively.
type Format int

const (
	FormatUnsupported Format = iota
	// FormatStructuredMail is an RFC 5322 / MIME message (.eml).
	FormatStructuredMail
	// FormatBinaryMail is an Outlook compound-file message (.msg).
	FormatBinaryMail
)

func (f Format) String() string {
	switch f {
	case FormatStructuredMail:
		return "structured_mail"
	case FormatBinaryMail:
		return "binary_mail"
	default:
		return "unsupported"
	}
}

// ClassifyFormat resolves the container format for a shared file. The
// extension wins; the mimetype only rescues files shared without one.
func ClassifyFormat(filename, mimetype string) Format {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".eml":
		return FormatStructuredMail
	case ".msg":
		return FormatBinaryMail
	case "":
	default:
		return FormatUnsupported
	}
	switch strings.ToLower(strings.TrimSpace(mimetype)) {
	case "message/rfc822":
		return FormatStructuredMail
	case "application/vnd.ms-outlook":
		return FormatBinaryMail
	}
	return FormatUnsupported
}

// Result is the normalized outcome of one extraction.
type Result struct {
	// Text is the header block plus body, ready for rendering.
	Text string
	// Degraded is set when the binary fallback produced the text. The
	// text already carries a visible banner in that case.
	Degraded bool
	// Skip marks non-mail content (calendar invites); the caller renders
	// a fixed notice instead of a body.
	Skip bool
}

// Extractor converts downloaded mail bytes into normalized text. It never
// returns an unhandled fault for a supported format: binary parse failures
// degrade to the byte-scan fallback instead.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{logger: log.With(slog.String("component", "extract"))}
}

// Extract dispatches on the pre-resolved format.
func (e *Extractor) Extract(data []byte, filename string, format Format) (Result, error) {
	switch format {
	case FormatStructuredMail:
		return e.extractStructured(data)
	case FormatBinaryMail:
		return e.extractBinary(data), nil
	default:
		return Result{}, ErrUnsupportedFormat
	}
}
