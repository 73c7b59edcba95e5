package webhook

import (
	"encoding/json"

	"github.com/mailpeek/mailpeek/internal/ingest"
)

const (
	envelopeURLVerification = "url_verification"
	envelopeEventCallback   = "event_callback"

	eventTypeMessage    = "message"
	eventTypeFileShared = "file_shared"
	eventTypeAppMention = "app_mention"

	subtypeFileShare = "file_share"
)

// envelope is the outer payload of an event-subscription delivery.
type envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	Event     json.RawMessage `json:"event"`
}

// innerEvent is the union of the inner event shapes this service reads.
// The same file share arrives both as a message with a file_share subtype
// (carrying full file stanzas) and as a bare file_shared notification
// (carrying only IDs); both distill into ingest.FileEvent.
type innerEvent struct {
	Type      string      `json:"type"`
	Subtype   string      `json:"subtype"`
	Channel   string      `json:"channel"`
	ChannelID string      `json:"channel_id"`
	User      string      `json:"user"`
	UserID    string      `json:"user_id"`
	TS        string      `json:"ts"`
	ThreadTS  string      `json:"thread_ts"`
	Text      string      `json:"text"`
	FileID    string      `json:"file_id"`
	Files     []eventFile `json:"files"`
}

type eventFile struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Mimetype           string `json:"mimetype"`
	Size               int64  `json:"size"`
	URLPrivateDownload string `json:"url_private_download"`
}

// threadAnchor is the timestamp replies should thread under: the parent
// thread when the share happened inside one, else the share message itself.
func (ev innerEvent) threadAnchor() string {
	if ev.ThreadTS != "" {
		return ev.ThreadTS
	}
	return ev.TS
}

// fileEvents distills the file-shared facts out of a classified event.
func (ev innerEvent) fileEvents() []ingest.FileEvent {
	switch {
	case ev.Type == eventTypeMessage && ev.Subtype == subtypeFileShare:
		out := make([]ingest.FileEvent, 0, len(ev.Files))
		for _, f := range ev.Files {
			if f.ID == "" {
				continue
			}
			out = append(out, ingest.FileEvent{
				FileID:      f.ID,
				Filename:    f.Name,
				Mimetype:    f.Mimetype,
				DownloadURL: f.URLPrivateDownload,
				Size:        f.Size,
				Channel:     ev.Channel,
				ThreadTS:    ev.threadAnchor(),
				UserID:      ev.User,
			})
		}
		return out
	case ev.Type == eventTypeFileShared:
		if ev.FileID == "" {
			return nil
		}
		return []ingest.FileEvent{{
			FileID:  ev.FileID,
			Channel: ev.ChannelID,
			UserID:  ev.UserID,
		}}
	default:
		return nil
	}
}
