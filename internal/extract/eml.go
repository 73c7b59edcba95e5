package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// extractStructured parses an RFC 5322 message: header block followed by
// the body, preferring a native text/plain part over converted HTML.
func (e *Extractor) extractStructured(data []byte) (Result, error) {
	mr, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parse message: %w", err)
	}

	var (
		plain strings.Builder
		html  strings.Builder
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever parts we already decoded.
			e.logger.Warn("stop at malformed mime part", slog.Any("error", err))
			break
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			plain.Write(body)
		case "text/html":
			html.Write(body)
		}
	}

	body := strings.TrimSpace(plain.String())
	if body == "" && html.Len() > 0 {
		converted, err := htmltomarkdown.ConvertString(html.String())
		if err != nil {
			e.logger.Warn("html conversion failed", slog.Any("error", err))
		} else {
			body = strings.TrimSpace(converted)
		}
	}
	if body == "" {
		body = "(no readable body)"
	}

	return Result{Text: headerBlock(mr.Header) + "\n\n" + body}, nil
}

func headerBlock(header mail.Header) string {
	var b strings.Builder
	writeAddressLine(&b, header, "From")
	writeAddressLine(&b, header, "To")
	writeAddressLine(&b, header, "Cc")
	if date, err := header.Date(); err == nil && !date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", date.Format(time.RFC1123Z))
	} else if raw := header.Get("Date"); raw != "" {
		fmt.Fprintf(&b, "Date: %s\n", raw)
	}
	if subject, err := header.Subject(); err == nil && subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", subject)
	} else if raw := header.Get("Subject"); raw != "" {
		fmt.Fprintf(&b, "Subject: %s\n", raw)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeAddressLine(b *strings.Builder, header mail.Header, field string) {
	addrs, err := header.AddressList(field)
	if err != nil || len(addrs) == 0 {
		if raw := header.Get(field); raw != "" {
			fmt.Fprintf(b, "%s: %s\n", field, raw)
		}
		return
	}
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.Name, addr.Address))
		} else {
			parts = append(parts, addr.Address)
		}
	}
	fmt.Fprintf(b, "%s: %s\n", field, strings.Join(parts, ", "))
}
