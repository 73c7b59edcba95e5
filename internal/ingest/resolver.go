package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
)

// ShareLocation is the resolved reply destination: channel plus the thread
// anchor timestamp of the share message.
type ShareLocation struct {
	Channel  string
	ThreadTS string
}

// FileMetadataFetcher reads upstream file metadata.
type FileMetadataFetcher interface {
	FileInfo(ctx context.Context, fileID string) (*slack.File, error)
}

// Sleeper waits between resolution attempts. Injectable so tests run the
// retry loop without wall-clock delay.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver determines the reply destination for a shared file. Event hints
// win when complete; otherwise it polls file metadata, because the platform
// attaches share records with a lag and the first notification frequently
// arrives before them.
type Resolver struct {
	logger   *slog.Logger
	files    FileMetadataFetcher
	attempts int
	delay    time.Duration
	sleep    Sleeper
}

func NewResolver(log *slog.Logger, files FileMetadataFetcher, attempts int, delay time.Duration) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if attempts <= 0 {
		attempts = 6
	}
	if delay <= 0 {
		delay = 800 * time.Millisecond
	}
	return &Resolver{
		logger:   log.With(slog.String("component", "resolver")),
		files:    files,
		attempts: attempts,
		delay:    delay,
		sleep:    defaultSleeper,
	}
}

// SetSleeper overrides the inter-attempt wait in tests.
func (r *Resolver) SetSleeper(sleep Sleeper) {
	if sleep != nil {
		r.sleep = sleep
	}
}

// Resolve returns the reply destination and whether one was found. Giving
// up after the retry budget is a normal outcome, not an error: without a
// destination the caller simply stays silent.
func (r *Resolver) Resolve(ctx context.Context, fileID, hintChannel, hintThreadTS string) (ShareLocation, bool, error) {
	if hintChannel != "" && hintThreadTS != "" {
		return ShareLocation{Channel: hintChannel, ThreadTS: hintThreadTS}, true, nil
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		file, err := r.files.FileInfo(ctx, fileID)
		if err != nil {
			r.logger.Warn("file info failed",
				slog.String("file_id", fileID),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		} else if loc, ok := shareLocationFromFile(file); ok {
			return loc, true, nil
		}
		if attempt == r.attempts {
			break
		}
		if err := r.sleep(ctx, r.delay); err != nil {
			return ShareLocation{}, false, err
		}
	}

	r.logger.Info("share metadata never appeared", slog.String("file_id", fileID), slog.Int("attempts", r.attempts))
	return ShareLocation{}, false, nil
}

// shareLocationFromFile scans the nested shares structure and takes the
// first (channel, ts) pair it encounters.
func shareLocationFromFile(file *slack.File) (ShareLocation, bool) {
	if file == nil {
		return ShareLocation{}, false
	}
	for _, scope := range []map[string][]slack.ShareFileInfo{file.Shares.Public, file.Shares.Private} {
		for channelID, infos := range scope {
			for _, info := range infos {
				if channelID != "" && info.Ts != "" {
					return ShareLocation{Channel: channelID, ThreadTS: info.Ts}, true
				}
			}
		}
	}
	return ShareLocation{}, false
}
