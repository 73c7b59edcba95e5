package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/mailpeek/mailpeek/internal/compose"
	"github.com/mailpeek/mailpeek/internal/extract"
	"github.com/mailpeek/mailpeek/internal/slackapi"
	"github.com/mailpeek/mailpeek/internal/store"
)

// User-visible notices. Failures of irrelevant uploads stay silent; these
// are only posted once a reply destination is known.
const (
	skipNotice    = "This file is a meeting notification; there is no mail body to preview."
	failureNotice = "Sorry, I could not read this file."
	tooBigNotice  = "This file is too large to preview."
)

// FileEvent is the distilled file-shared fact extracted from either event
// shape. Fields other than FileID are hints and may be empty; the pipeline
// completes them from file metadata.
type FileEvent struct {
	FileID      string
	Filename    string
	Mimetype    string
	DownloadURL string
	Size        int64
	Channel     string
	ThreadTS    string
	UserID      string
}

// FileAPI is the upstream file surface: metadata lookups and authenticated
// downloads.
type FileAPI interface {
	FileInfo(ctx context.Context, fileID string) (*slack.File, error)
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// Messenger posts replies into the resolved thread.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, threadTS, fallback string, blocks []slack.Block) (string, error)
	PostText(ctx context.Context, channelID, threadTS, text string) error
}

// Extractor converts downloaded bytes to normalized text.
type Extractor interface {
	Extract(data []byte, filename string, format extract.Format) (extract.Result, error)
}

// Options carries the processing knobs wired from config.
type Options struct {
	MaxDownloadBytes int64
	ContentTTL       time.Duration
	AllowedChannels  []string
	Diagnostics      bool
}

// Service is the ingestion pipeline for file-shared events: coordinate,
// resolve, download, extract, store, reply. One call handles one delivery
// synchronously; duplicates abort inside the coordinator.
type Service struct {
	logger      *slog.Logger
	coordinator *Coordinator
	resolver    *Resolver
	files       FileAPI
	messenger   Messenger
	extractor   Extractor
	kv          store.Store
	composer    *compose.Composer
	opts        Options
	allowed     map[string]struct{}
	now         func() time.Time
}

func NewService(
	log *slog.Logger,
	coordinator *Coordinator,
	resolver *Resolver,
	files FileAPI,
	messenger Messenger,
	extractor Extractor,
	kv store.Store,
	composer *compose.Composer,
	opts Options,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[string]struct{}, len(opts.AllowedChannels))
	for _, ch := range opts.AllowedChannels {
		if ch = strings.TrimSpace(ch); ch != "" {
			allowed[ch] = struct{}{}
		}
	}
	return &Service{
		logger:      log.With(slog.String("component", "ingest")),
		coordinator: coordinator,
		resolver:    resolver,
		files:       files,
		messenger:   messenger,
		extractor:   extractor,
		kv:          kv,
		composer:    composer,
		opts:        opts,
		allowed:     allowed,
		now:         time.Now,
	}
}

// SetClock overrides the content-key clock in tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// HandleFileShared processes one delivery of a file-shared fact. Internal
// failures degrade to a silent no-op or a short visible notice; the only
// errors returned are ones the caller can do nothing about but log.
func (s *Service) HandleFileShared(ctx context.Context, ev FileEvent) error {
	if ev.FileID == "" {
		return nil
	}
	log := s.logger.With(slog.String("file_id", ev.FileID))

	// Cheap local rejection before any coordination or outbound call,
	// possible whenever the event shape carried the filename.
	if ev.Filename != "" && extract.ClassifyFormat(ev.Filename, ev.Mimetype) == extract.FormatUnsupported {
		log.Debug("unsupported format, ignoring", slog.String("filename", ev.Filename))
		return nil
	}

	acquired, err := s.coordinator.Acquire(ctx, ev.FileID)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	if !acquired {
		log.Debug("duplicate delivery, aborting")
		return nil
	}

	succeeded := false
	defer func() {
		s.coordinator.Finish(ctx, ev.FileID, succeeded)
	}()

	if ev.Filename == "" || ev.DownloadURL == "" {
		file, err := s.files.FileInfo(ctx, ev.FileID)
		if err != nil {
			log.Warn("file metadata lookup failed", slog.Any("error", err))
			return nil
		}
		ev.Filename = file.Name
		ev.Mimetype = file.Mimetype
		ev.DownloadURL = file.URLPrivateDownload
		if ev.Size == 0 {
			ev.Size = int64(file.Size)
		}
	}

	format := extract.ClassifyFormat(ev.Filename, ev.Mimetype)
	if format == extract.FormatUnsupported {
		log.Debug("unsupported format, ignoring", slog.String("filename", ev.Filename))
		return nil
	}

	loc, ok, err := s.resolver.Resolve(ctx, ev.FileID, ev.Channel, ev.ThreadTS)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if !ok {
		log.Info("no reply destination, staying silent")
		return nil
	}
	if !s.channelAllowed(loc.Channel) {
		log.Info("channel not in allow-list, ignoring", slog.String("channel", loc.Channel))
		return nil
	}

	if ev.Size > 0 && ev.Size > s.opts.MaxDownloadBytes {
		log.Info("file exceeds download ceiling",
			slog.Int64("size", ev.Size),
			slog.Int64("ceiling", s.opts.MaxDownloadBytes),
		)
		s.postNotice(ctx, loc, tooBigNotice)
		return nil
	}

	data, err := s.files.Download(ctx, ev.DownloadURL, s.opts.MaxDownloadBytes)
	if err != nil {
		log.Warn("download failed", slog.Any("error", err))
		notice := failureNotice
		if errors.Is(err, slackapi.ErrTooLarge) {
			notice = tooBigNotice
		}
		s.postNotice(ctx, loc, notice)
		return nil
	}

	result, err := s.extractor.Extract(data, ev.Filename, format)
	if err != nil {
		log.Warn("extraction failed", slog.Any("error", err))
		s.postNotice(ctx, loc, failureNotice)
		return nil
	}
	if result.Skip {
		s.postNotice(ctx, loc, skipNotice)
		succeeded = true
		return nil
	}

	body := s.composer.StoredBody(result.Text)
	key := store.ContentKey(s.now(), ev.FileID)
	if err := store.PutContent(ctx, s.kv, key, store.ContentEntry{Text: body, Filename: ev.Filename}, s.opts.ContentTTL); err != nil {
		log.Warn("store content failed", slog.Any("error", err))
		s.postNotice(ctx, loc, failureNotice)
		return nil
	}

	blocks := s.composer.PreviewBlocks(ev.Filename, body, key)
	if _, err := s.messenger.PostMessage(ctx, loc.Channel, loc.ThreadTS, "Preview of "+ev.Filename, blocks); err != nil {
		log.Warn("post preview failed", slog.Any("error", err))
		return nil
	}
	s.recordDiagnostics(ctx, loc.Channel, ev)
	succeeded = true

	log.Info("preview posted",
		slog.String("channel", loc.Channel),
		slog.String("thread_ts", loc.ThreadTS),
		slog.Bool("degraded", result.Degraded),
	)
	return nil
}

// HandleMention answers diagnostic app mentions.
func (s *Service) HandleMention(ctx context.Context, channelID, threadTS, text string) error {
	if !strings.Contains(strings.ToLower(text), "status") {
		return nil
	}
	return s.messenger.PostText(ctx, channelID, threadTS,
		"mailpeek is online and watching for .eml and .msg shares.")
}

func (s *Service) channelAllowed(channelID string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[channelID]
	return ok
}

func (s *Service) postNotice(ctx context.Context, loc ShareLocation, notice string) {
	if err := s.messenger.PostText(ctx, loc.Channel, loc.ThreadTS, notice); err != nil {
		s.logger.Warn("post notice failed", slog.Any("error", err))
	}
}

func (s *Service) recordDiagnostics(ctx context.Context, channelID string, ev FileEvent) {
	if !s.opts.Diagnostics {
		return
	}
	key := "diag:last:" + channelID
	if err := s.kv.Set(ctx, key, ev.FileID+" "+ev.Filename, s.opts.ContentTTL); err != nil {
		s.logger.Debug("diagnostics write failed", slog.Any("error", err))
	}
}
