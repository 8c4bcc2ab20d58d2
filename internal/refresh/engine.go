package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/content"
	"cryptodaily/internal/domain"
	"cryptodaily/internal/provider"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultParallelism = 4
	DefaultVsCurrency  = "usd"
)

type AssetLister interface {
	SupportedIDs() []string
}

type PriceSource interface {
	FetchPrices(ctx context.Context, assetIDs []string, vsCurrency string) (map[string]domain.Payload, error)
}

type NewsSource interface {
	FetchLatestNews(ctx context.Context, kindFilter string) domain.Payload
}

type MemeSource interface {
	FetchMeme(ctx context.Context) domain.Meme
}

type InsightSource interface {
	GenerateInsight(ctx context.Context, ic provider.InsightContext) domain.Insight
}

type ContentWriter interface {
	Put(ctx context.Context, kind domain.Kind, asset string, payload domain.Payload, now time.Time) (content.Outcome, error)
}

type Config struct {
	VsCurrency  string
	Parallelism int
}

// Report summarizes one refresh pass.
type Report struct {
	Day      string                                  `json:"day"`
	Assets   int                                     `json:"assets"`
	Skipped  bool                                    `json:"skipped,omitempty"`
	Outcomes map[domain.Kind]map[content.Outcome]int `json:"outcomes"`
	Duration time.Duration                           `json:"duration"`
}

// Engine fetches every (kind, asset) pair once per pass and hands the
// payloads to the content store, which decides what is kept.
type Engine struct {
	assets   AssetLister
	prices   PriceSource
	news     NewsSource
	memes    MemeSource
	insights InsightSource
	store    ContentWriter
	clock    clock.Clock
	cfg      Config
	log      *slog.Logger
}

func NewEngine(
	assets AssetLister,
	prices PriceSource,
	news NewsSource,
	memes MemeSource,
	insights InsightSource,
	store ContentWriter,
	clk clock.Clock,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = DefaultVsCurrency
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}

	return &Engine{
		assets:   assets,
		prices:   prices,
		news:     news,
		memes:    memes,
		insights: insights,
		store:    store,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

// Run performs one pass. Provider failures never abort it; the returned
// error joins store failures across all assets, and the report is valid
// either way.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	start := e.clock.Now()
	report := Report{
		Day:      domain.UTCDay(start),
		Outcomes: make(map[domain.Kind]map[content.Outcome]int),
	}

	ids := e.assets.SupportedIDs()
	if len(ids) == 0 {
		e.log.WarnContext(ctx, "No supported assets found, skipping daily content refresh")
		refreshRuns.WithLabelValues("skipped").Inc()
		report.Skipped = true
		return report, nil
	}
	report.Assets = len(ids)

	prices, err := e.prices.FetchPrices(ctx, ids, e.cfg.VsCurrency)
	if err != nil {
		e.log.WarnContext(ctx, "Failed to fetch prices",
			"error", err,
			"assetCount", len(ids))
	}

	news := e.news.FetchLatestNews(ctx, "")

	meme, err := json.Marshal(e.memes.FetchMeme(ctx))
	if err != nil {
		return report, fmt.Errorf("marshal meme: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	record := func(kind domain.Kind, outcome content.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			errs = append(errs, err)
			return
		}

		if report.Outcomes[kind] == nil {
			report.Outcomes[kind] = make(map[content.Outcome]int)
		}
		report.Outcomes[kind][outcome]++
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)

	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				record("", "", fmt.Errorf("refresh asset (asset = %s): %w", id, ctx.Err()))
				return nil
			}

			e.refreshAsset(ctx, id, prices[id], news, meme, start, record)
			return nil
		})
	}

	_ = g.Wait()

	report.Duration = e.clock.Now().Sub(start)
	refreshDuration.Observe(report.Duration.Seconds())

	if err = errors.Join(errs...); err != nil {
		refreshRuns.WithLabelValues("partial").Inc()
		return report, err
	}

	refreshRuns.WithLabelValues("ok").Inc()
	e.log.InfoContext(ctx, "Daily content refreshed",
		"day", report.Day,
		"assetCount", report.Assets,
		"duration", report.Duration)

	return report, nil
}

func (e *Engine) refreshAsset(
	ctx context.Context,
	asset string,
	price domain.Payload,
	news domain.Payload,
	meme domain.Payload,
	now time.Time,
	record func(domain.Kind, content.Outcome, error),
) {
	put := func(kind domain.Kind, payload domain.Payload) {
		outcome, err := e.store.Put(ctx, kind, asset, payload, now)
		if err != nil {
			e.log.ErrorContext(ctx, "Failed to persist content",
				"error", err,
				"kind", kind,
				"asset", asset)
			err = fmt.Errorf("persist %s (asset = %s): %w", kind, asset, err)
		}
		record(kind, outcome, err)
	}

	put(domain.KindPrice, price)
	put(domain.KindNews, news)
	put(domain.KindMeme, meme)

	insight := e.insights.GenerateInsight(ctx, provider.InsightContext{
		Asset: asset,
		Price: price,
		News:  news,
		Meme:  meme,
	})

	raw, err := json.Marshal(insight)
	if err != nil {
		record(domain.KindAIInsight, "", fmt.Errorf("marshal insight (asset = %s): %w", asset, err))
		return
	}

	put(domain.KindAIInsight, raw)
}
