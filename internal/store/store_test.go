package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v" {
		t.Fatalf("unexpected value: %q", got)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected live key, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestContentEntryRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	key := ContentKey(time.Unix(1748800000, 0), "F123")
	require.Equal(t, "content:1748800000:F123", key)

	entry := ContentEntry{Text: "Subject: hi\n\nbody", Filename: "report.eml"}
	require.NoError(t, PutContent(ctx, s, key, entry, time.Hour))

	got, err := GetContent(ctx, s, key)
	require.NoError(t, err)
	require.Equal(t, entry, got)

	_, err = GetContent(ctx, s, "content:0:other")
	require.ErrorIs(t, err, ErrNotFound)
}
