package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/mailpeek/mailpeek/internal/compose"
	"github.com/mailpeek/mailpeek/internal/config"
	"github.com/mailpeek/mailpeek/internal/extract"
	"github.com/mailpeek/mailpeek/internal/handlers"
	"github.com/mailpeek/mailpeek/internal/ingest"
	"github.com/mailpeek/mailpeek/internal/logger"
	"github.com/mailpeek/mailpeek/internal/server"
	"github.com/mailpeek/mailpeek/internal/slackapi"
	"github.com/mailpeek/mailpeek/internal/store"
	"github.com/mailpeek/mailpeek/internal/version"
	"github.com/mailpeek/mailpeek/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideSlackClient,
			provideComposer,
			provideExtractor,
			provideCoordinator,
			provideResolver,
			provideIngestService,
			provideToggle,
			provideVerifier,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(handlers.NewPingHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(lc fx.Lifecycle, cfg config.Config) (store.Store, error) {
	kv, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return kv.Close() }})
	return kv, nil
}

func provideSlackClient(log *slog.Logger, cfg config.Config) *slackapi.Client {
	return slackapi.New(log, cfg.Slack.BotToken)
}

func provideComposer(cfg config.Config) *compose.Composer {
	return compose.NewComposer(compose.Limits{
		StoredChars:  cfg.Preview.StoredChars,
		ExcerptChars: cfg.Preview.ExcerptChars,
		BlockChars:   cfg.Preview.BlockChars,
	})
}

func provideExtractor(log *slog.Logger) *extract.Extractor {
	return extract.NewExtractor(log)
}

func provideCoordinator(log *slog.Logger, kv store.Store, cfg config.Config) *ingest.Coordinator {
	return ingest.NewCoordinator(log, kv, time.Duration(cfg.Resolve.LockTTLMinutes)*time.Minute)
}

func provideResolver(log *slog.Logger, client *slackapi.Client, cfg config.Config) *ingest.Resolver {
	return ingest.NewResolver(log, client, cfg.Resolve.Attempts, time.Duration(cfg.Resolve.DelayMS)*time.Millisecond)
}

func provideIngestService(
	log *slog.Logger,
	coordinator *ingest.Coordinator,
	resolver *ingest.Resolver,
	client *slackapi.Client,
	extractor *extract.Extractor,
	kv store.Store,
	composer *compose.Composer,
	cfg config.Config,
) *ingest.Service {
	return ingest.NewService(log, coordinator, resolver, client, client, extractor, kv, composer, ingest.Options{
		MaxDownloadBytes: cfg.Preview.MaxDownloadBytes,
		ContentTTL:       time.Duration(cfg.Preview.ContentTTLHours) * time.Hour,
		AllowedChannels:  cfg.Slack.AllowedChannels,
		Diagnostics:      cfg.Slack.Diagnostics,
	})
}

func provideToggle(log *slog.Logger, kv store.Store, composer *compose.Composer, client *slackapi.Client, cfg config.Config) *compose.Toggle {
	return compose.NewToggle(log, kv, composer, client, cfg.Slack.DMCopyEnabled)
}

func provideVerifier(cfg config.Config) *webhook.Verifier {
	return webhook.NewVerifier(cfg.Slack.SigningSecret)
}

func provideWebhookHandler(log *slog.Logger, verifier *webhook.Verifier, svc *ingest.Service, toggle *compose.Toggle) *webhook.Handler {
	return webhook.NewHandler(log, verifier, svc, toggle)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting mailpeek %s\n", version.Info())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
