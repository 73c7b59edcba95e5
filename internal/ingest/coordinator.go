package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailpeek/mailpeek/internal/store"
)

// Key prefixes for the per-file processing record. The three flags are
// independent store keys; transitions are monotonic. lock is written once
// and never removed, done is written at most once.
const (
	lockKeyPrefix       = "lock:"
	processingKeyPrefix = "processing:"
	doneKeyPrefix       = "done:"

	lockHeldValue      = "held"
	lockFinalizedValue = "finalized"
)

// Coordinator serializes processing attempts per file ID over a store that
// offers only independent get/set. The check-then-set sequence is a race
// window, not a guarantee: concurrent deliveries can both win in a narrow
// window, and the acceptable failure mode is a rare duplicate reply.
type Coordinator struct {
	logger *slog.Logger
	store  store.Store
	// lockTTL, when positive, lets an abandoned lock expire so a crash
	// mid-attempt does not strand the file ID forever. Zero keeps the
	// historical never-expires behavior.
	lockTTL time.Duration
}

func NewCoordinator(log *slog.Logger, kv store.Store, lockTTL time.Duration) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		logger:  log.With(slog.String("component", "coordinator")),
		store:   kv,
		lockTTL: lockTTL,
	}
}

// Acquire attempts to claim fileID for processing. It returns false when a
// lock is already present or the file was already completed; both are
// expected duplicate-delivery outcomes and deliberately indistinguishable
// to callers. A store failure is returned as an error.
func (c *Coordinator) Acquire(ctx context.Context, fileID string) (bool, error) {
	lockKey := lockKeyPrefix + fileID

	_, err := c.store.Get(ctx, lockKey)
	if err == nil {
		c.logger.Debug("lock already held", slog.String("file_id", fileID))
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("read lock: %w", err)
	}

	if err := c.store.Set(ctx, lockKey, lockHeldValue, c.lockTTL); err != nil {
		return false, fmt.Errorf("write lock: %w", err)
	}

	_, err = c.store.Get(ctx, doneKeyPrefix+fileID)
	if err == nil {
		c.logger.Debug("already done", slog.String("file_id", fileID))
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("read done flag: %w", err)
	}

	if err := c.store.Set(ctx, processingKeyPrefix+fileID, time.Now().UTC().Format(time.RFC3339), c.lockTTL); err != nil {
		return false, fmt.Errorf("write processing flag: %w", err)
	}
	return true, nil
}

// Finish finalizes the record on every exit path of an attempt. done is
// written only for a successful completion; the lock stays present either
// way so duplicate deliveries keep aborting.
func (c *Coordinator) Finish(ctx context.Context, fileID string, succeeded bool) {
	if succeeded {
		if err := c.store.Set(ctx, doneKeyPrefix+fileID, time.Now().UTC().Format(time.RFC3339), 0); err != nil {
			c.logger.Warn("write done flag failed", slog.String("file_id", fileID), slog.Any("error", err))
		}
	}
	if err := c.store.Delete(ctx, processingKeyPrefix+fileID); err != nil {
		c.logger.Warn("clear processing flag failed", slog.String("file_id", fileID), slog.Any("error", err))
	}
	if err := c.store.Set(ctx, lockKeyPrefix+fileID, lockFinalizedValue, 0); err != nil {
		c.logger.Warn("finalize lock failed", slog.String("file_id", fileID), slog.Any("error", err))
	}
}
