package main

import (
	"context"
	"fmt"
	"log/slog"

	"cryptodaily/internal/assets"
	"cryptodaily/internal/clock"
	"cryptodaily/internal/config"
	"cryptodaily/internal/content"
	"cryptodaily/internal/database"
	"cryptodaily/internal/feedback"
	"cryptodaily/internal/generator"
	"cryptodaily/internal/provider"
	"cryptodaily/internal/refresh"
	"cryptodaily/internal/robusthttp"
	"cryptodaily/internal/snapshot"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	clock    clock.Clock
	db       *database.Database
	resolver *assets.Resolver
	engine   *refresh.Engine
	composer *snapshot.Composer
	ledger   *feedback.Ledger
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	location, err := cfg.SnapshotLocation()
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open database (dbPath = %s): %w", cfg.DBPath, err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	clk := clock.System{}
	resolver := assets.NewResolver()

	client := robusthttp.NewClient(
		robusthttp.WithRateLimit(cfg.ProviderRatePerSecond, 1),
		robusthttp.WithLogger(log),
	)

	feedURLs := cfg.NewsFeedURLs
	if len(feedURLs) == 0 {
		feedURLs = provider.DefaultNewsFeedURLs
	}

	news := provider.NewNewsChain(log,
		provider.NewCryptoPanic(client, cfg.CryptoPanicBaseURL, cfg.CryptoPanicAPIKey, log),
		provider.NewRSSNews(client, feedURLs, log),
	)

	store := content.NewStore(db, log)

	engine := refresh.NewEngine(
		resolver,
		provider.NewCoinGecko(client, cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey),
		news,
		provider.NewMemeService(client, cfg.MemeAPIURL, cfg.RedditMemeURL, clk, log),
		provider.NewInsightService(initGenerator(ctx, cfg, client, log), clk, log),
		store,
		clk,
		refresh.Config{VsCurrency: cfg.VsCurrency, Parallelism: cfg.RefreshParallelism},
		log,
	)

	ledger, err := feedback.NewLedger(db, store, clk, feedback.DefaultIndexSize, log)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", closeErr)
		}
		return nil, fmt.Errorf("create feedback ledger: %w", err)
	}

	composer := snapshot.NewComposer(db, store, ledger, resolver, clk, location, log)

	return &app{
		cfg:      cfg,
		log:      log,
		clock:    clk,
		db:       db,
		resolver: resolver,
		engine:   engine,
		composer: composer,
		ledger:   ledger,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

// initGenerator prefers OpenAI, then Hugging Face. nil means insights use
// the built-in fallback blurbs.
func initGenerator(
	ctx context.Context,
	cfg config.Config,
	client *robusthttp.Client,
	log *slog.Logger,
) generator.Generator {
	if cfg.OpenAIAPIKey != "" {
		gen, err := generator.NewOpenAIGenerator(cfg.OpenAIAPIKey)
		if err == nil {
			log.InfoContext(ctx, "OpenAI generator is initialized",
				"provider", gen.Name())

			return gen
		}

		log.ErrorContext(ctx, "Failed to create OpenAI generator",
			"error", err,
			"envVar", "OPENAI_API_KEY")
	}

	if cfg.HuggingFaceAPIToken != "" {
		gen, err := generator.NewHuggingFaceGenerator(client, "", cfg.HuggingFaceModelID, cfg.HuggingFaceAPIToken)
		if err == nil {
			log.InfoContext(ctx, "Hugging Face generator is initialized",
				"provider", gen.Name())

			return gen
		}

		log.ErrorContext(ctx, "Failed to create Hugging Face generator",
			"error", err,
			"envVar", "HUGGINGFACE_API_TOKEN")
	}

	log.WarnContext(ctx, "No generator is configured so fallback insights will be used")

	return nil
}
