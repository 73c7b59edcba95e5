package compose

import (
	"fmt"

	"github.com/slack-go/slack"
)

// Action IDs carried by the interactive buttons. The button value is always
// a content-store key, never a text snapshot.
const (
	ActionShowFull    = "mailpeek_show_full"
	ActionShowPreview = "mailpeek_show_preview"
	ActionSendCopy    = "mailpeek_send_copy"
	ActionDelete      = "mailpeek_delete"
)

const (
	expiredNotice = "(content expired)"
	removedNotice = "Preview removed."
	// dmCopyByteBudget caps the raw-text DM copy. Byte-safe: Slack rejects
	// oversized message payloads by size, not rune count.
	dmCopyByteBudget = 39000
	dmCopyNotice     = "\n… (truncated)"
)

// Limits holds the rendering budgets, wired from config.
type Limits struct {
	StoredChars  int
	ExcerptChars int
	BlockChars   int
}

// Composer renders the preview and full views of a stored mail body.
type Composer struct {
	limits Limits
}

func NewComposer(limits Limits) *Composer {
	return &Composer{limits: limits}
}

// StoredBody applies the storage character budget to an extracted body.
func (c *Composer) StoredBody(text string) string {
	return CapChars(text, c.limits.StoredChars)
}

// PreviewBlocks renders the collapsed state: filename, one-line excerpt and
// the expand control.
func (c *Composer) PreviewBlocks(filename, text, contentKey string) []slack.Block {
	excerpt := Excerpt(text, c.limits.ExcerptChars)
	if excerpt == "" {
		excerpt = "(empty message)"
	}
	return []slack.Block{
		headerContext(filename),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "> "+excerpt, false, false),
			nil, nil,
		),
		slack.NewActionBlock(
			"mailpeek_preview_actions",
			slack.NewButtonBlockElement(ActionShowFull, contentKey,
				slack.NewTextBlockObject(slack.PlainTextType, "Show full", false, false)),
		),
	}
}

// FullBlocks renders the expanded state: the complete stored text split
// into fixed-size blocks plus the collapse and copy controls.
func (c *Composer) FullBlocks(filename, text, contentKey string, dmCopyEnabled bool) []slack.Block {
	blocks := []slack.Block{headerContext(filename)}
	for _, chunk := range ChunkRunes(text, c.limits.BlockChars) {
		if chunk == "" {
			chunk = "(empty message)"
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false),
			nil, nil,
		))
	}

	elements := []slack.BlockElement{
		slack.NewButtonBlockElement(ActionShowPreview, contentKey,
			slack.NewTextBlockObject(slack.PlainTextType, "Show preview", false, false)),
	}
	if dmCopyEnabled {
		elements = append(elements, slack.NewButtonBlockElement(ActionSendCopy, contentKey,
			slack.NewTextBlockObject(slack.PlainTextType, "Send me a copy", false, false)))
	}
	deleteBtn := slack.NewButtonBlockElement(ActionDelete, contentKey,
		slack.NewTextBlockObject(slack.PlainTextType, "Delete", false, false))
	deleteBtn.Style = slack.StyleDanger
	elements = append(elements, deleteBtn)

	return append(blocks, slack.NewActionBlock("mailpeek_full_actions", elements...))
}

// ExpiredBlocks replaces a view whose content entry has vanished from the
// store. Absence is a degraded state, not an error.
func (c *Composer) ExpiredBlocks(filename string) []slack.Block {
	return []slack.Block{
		headerContext(filename),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, expiredNotice, false, false),
			nil, nil,
		),
	}
}

// RemovedBlocks replaces a view after an explicit delete action.
func (c *Composer) RemovedBlocks() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, removedNotice, false, false),
			nil, nil,
		),
	}
}

// DMCopyText renders the raw-text export sent as a DM copy, byte-capped so
// the outbound payload always fits.
func (c *Composer) DMCopyText(filename, text string) string {
	return TruncateBytes(fmt.Sprintf("Copy of %s:\n\n%s", filename, text), dmCopyByteBudget, dmCopyNotice)
}

func headerContext(filename string) slack.Block {
	if filename == "" {
		filename = "shared file"
	}
	return slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf(":email: *%s*", filename), false, false),
	)
}
