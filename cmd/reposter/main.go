package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/afero"

	"trend_reposter/internal/assets"
	"trend_reposter/internal/clock"
	"trend_reposter/internal/config"
	"trend_reposter/internal/publisher"
	"trend_reposter/internal/schedule"
	"trend_reposter/internal/scheduler"
	"trend_reposter/internal/service"
	"trend_reposter/internal/sink/social"
	"trend_reposter/internal/sink/telegram"
	"trend_reposter/internal/source/feed"
	"trend_reposter/internal/source/reddit"
	"trend_reposter/internal/storage/postgres"
	"trend_reposter/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	fs := afero.NewOsFs()

	source := newSource(cfg, logger)

	poster, err := newPoster(fs, cfg, logger)
	if err != nil {
		logger.Error("failed to create publishing sink", "error", err)
		os.Exit(1)
	}

	var ledger *service.Ledger
	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.Run(db.DB); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		ledger = &service.Ledger{
			Publications: postgres.NewPublicationStore(db),
			Stats:        postgres.NewSourceStatsStore(db),
			TxManager:    postgres.NewTransactionManager(db),
		}
	}

	// Left as a nil interface when disabled so the service skips events.
	var events service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	scheduleStore := schedule.NewStore(fs, cfg.Schedule.StatePath)
	assetStore := assets.NewStore(fs, &http.Client{Timeout: cfg.Assets.Timeout}, assets.Config{
		Dir:       cfg.Assets.Dir,
		UserAgent: cfg.Source.UserAgent,
		MaxSize:   cfg.Assets.MaxSize,
	}, logger)

	clk := clock.System{}

	repostService := service.NewRepostService(
		source,
		scheduleStore,
		assetStore,
		poster,
		ledger,
		events,
		clk,
		service.NewRand(),
		logger,
		cfg.Post,
	)

	sched := scheduler.NewScheduler(repostService, scheduleStore, assetStore, clk, scheduler.Config{
		PollInterval: cfg.Schedule.PollInterval,
		InitialDelay: cfg.Schedule.InitialDelay,
		CycleTimeout: cfg.Schedule.CycleTimeout,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting reposter",
		"source", source.Name(),
		"sink", cfg.Sink.Kind,
		"interval", cfg.Schedule.PollInterval,
		"state_path", cfg.Schedule.StatePath,
		"ledger", cfg.Database.Enabled,
		"events", cfg.RabbitMQ.Enabled,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func newSource(cfg *config.Config, logger *slog.Logger) service.Source {
	if cfg.Source.Kind == config.SourceFeed {
		return feed.New(&http.Client{Timeout: cfg.Source.Timeout}, feed.Config{
			URL:       cfg.Source.FeedURL,
			UserAgent: cfg.Source.UserAgent,
		}, logger)
	}

	return reddit.New(reddit.Config{
		BaseURL:     cfg.Source.BaseURL,
		Subreddit:   cfg.Source.Subreddit,
		TimeWindow:  cfg.Source.TimeWindow,
		AccessToken: cfg.Source.AccessToken,
		UserAgent:   cfg.Source.UserAgent,
		ImageOnly:   *cfg.Source.ImageOnly,
		Timeout:     cfg.Source.Timeout,
	}, logger)
}

func newPoster(fs afero.Fs, cfg *config.Config, logger *slog.Logger) (service.Poster, error) {
	switch cfg.Sink.Kind {
	case config.SinkTelegram:
		client, err := telegram.New(fs, &http.Client{Timeout: cfg.Sink.Timeout}, telegram.Config{
			BotToken: cfg.Sink.Telegram.BotToken,
			ChatID:   cfg.Sink.Telegram.ChatID,
			Endpoint: cfg.Sink.Telegram.Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.SinkHTTP:
		return social.New(fs, social.Config{
			BaseURL:   cfg.Sink.BaseURL,
			Token:     cfg.Sink.Token,
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.Sink.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
