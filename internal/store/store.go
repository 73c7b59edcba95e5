package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key is absent. Content entries
// vanishing is a defined degraded state for callers, not a failure.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract shared by the dedup coordinator and the
// ephemeral content store. Implementations offer independent get/set only;
// there is no compare-and-swap and no transaction discipline, so every read
// must be treated as possibly stale.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ContentEntry holds the extracted text of one processed file. It is the
// source of truth for the preview/full toggle: the UI always re-reads it
// instead of carrying text through interaction payloads.
type ContentEntry struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// ContentKey builds the store key for a content entry. The timestamp keeps
// keys unique and makes stale entries easy to spot when debugging.
func ContentKey(ts time.Time, fileID string) string {
	return fmt.Sprintf("content:%d:%s", ts.Unix(), fileID)
}

// PutContent stores entry under key with the given TTL.
func PutContent(ctx context.Context, s Store, key string, entry ContentEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal content entry: %w", err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// GetContent fetches and decodes a content entry. ErrNotFound passes
// through untouched so callers can render the expired state.
func GetContent(ctx context.Context, s Store, key string) (ContentEntry, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return ContentEntry{}, err
	}
	var entry ContentEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return ContentEntry{}, fmt.Errorf("decode content entry: %w", err)
	}
	return entry, nil
}
