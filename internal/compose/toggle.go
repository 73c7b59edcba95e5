package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/mailpeek/mailpeek/internal/store"
)

// Action is the distilled interactive payload the toggle reacts to. The
// content key names a store entry; the displayed text is always re-read
// from the store so repeated toggling never drifts from the canonical text.
type Action struct {
	ActionID   string
	ContentKey string
	ChannelID  string
	MessageTS  string
	UserID     string
	TriggerID  string
}

// ToggleMessenger is the outbound surface the toggle needs.
type ToggleMessenger interface {
	UpdateMessage(ctx context.Context, channelID, ts, fallback string, blocks []slack.Block) error
	PostDM(ctx context.Context, userID, text string) error
	OpenNotice(ctx context.Context, triggerID, title, body string) error
}

// Toggle drives the two-state Preview ⇄ Full view of a posted reply.
type Toggle struct {
	logger        *slog.Logger
	store         store.Store
	composer      *Composer
	messenger     ToggleMessenger
	dmCopyEnabled bool
}

func NewToggle(log *slog.Logger, kv store.Store, composer *Composer, messenger ToggleMessenger, dmCopyEnabled bool) *Toggle {
	if log == nil {
		log = slog.Default()
	}
	return &Toggle{
		logger:        log.With(slog.String("component", "toggle")),
		store:         kv,
		composer:      composer,
		messenger:     messenger,
		dmCopyEnabled: dmCopyEnabled,
	}
}

// Handle applies one interactive action. Unknown action IDs are ignored.
func (t *Toggle) Handle(ctx context.Context, action Action) error {
	switch action.ActionID {
	case ActionShowFull:
		return t.render(ctx, action, func(entry store.ContentEntry) []slack.Block {
			return t.composer.FullBlocks(entry.Filename, entry.Text, action.ContentKey, t.dmCopyEnabled)
		})
	case ActionShowPreview:
		return t.render(ctx, action, func(entry store.ContentEntry) []slack.Block {
			return t.composer.PreviewBlocks(entry.Filename, entry.Text, action.ContentKey)
		})
	case ActionSendCopy:
		return t.sendCopy(ctx, action)
	case ActionDelete:
		return t.delete(ctx, action)
	default:
		t.logger.Debug("ignoring unknown action", slog.String("action_id", action.ActionID))
		return nil
	}
}

func (t *Toggle) render(ctx context.Context, action Action, build func(store.ContentEntry) []slack.Block) error {
	entry, err := store.GetContent(ctx, t.store, action.ContentKey)
	if errors.Is(err, store.ErrNotFound) {
		return t.messenger.UpdateMessage(ctx, action.ChannelID, action.MessageTS, expiredNotice, t.composer.ExpiredBlocks(""))
	}
	if err != nil {
		return fmt.Errorf("read content entry: %w", err)
	}
	fallback := Excerpt(entry.Text, t.composer.limits.ExcerptChars)
	return t.messenger.UpdateMessage(ctx, action.ChannelID, action.MessageTS, fallback, build(entry))
}

func (t *Toggle) sendCopy(ctx context.Context, action Action) error {
	if !t.dmCopyEnabled {
		if action.TriggerID != "" {
			return t.messenger.OpenNotice(ctx, action.TriggerID, "Copies disabled", "Sending DM copies is disabled for this workspace.")
		}
		t.logger.Debug("dm copy disabled, ignoring", slog.String("user", action.UserID))
		return nil
	}
	entry, err := store.GetContent(ctx, t.store, action.ContentKey)
	if errors.Is(err, store.ErrNotFound) {
		return t.messenger.PostDM(ctx, action.UserID, expiredNotice)
	}
	if err != nil {
		return fmt.Errorf("read content entry: %w", err)
	}
	return t.messenger.PostDM(ctx, action.UserID, t.composer.DMCopyText(entry.Filename, entry.Text))
}

func (t *Toggle) delete(ctx context.Context, action Action) error {
	if err := t.store.Delete(ctx, action.ContentKey); err != nil {
		t.logger.Warn("delete content entry failed", slog.Any("error", err))
	}
	return t.messenger.UpdateMessage(ctx, action.ChannelID, action.MessageTS, removedNotice, t.composer.RemovedBlocks())
}
