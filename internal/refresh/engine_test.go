package refresh_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cryptodaily/internal/assets"
	"cryptodaily/internal/clock"
	"cryptodaily/internal/content"
	"cryptodaily/internal/database/dbtest"
	"cryptodaily/internal/domain"
	"cryptodaily/internal/provider"
	"cryptodaily/internal/refresh"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubPrices struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (s *stubPrices) set(price float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = price, err
}

func (s *stubPrices) FetchPrices(_ context.Context, ids []string, vs string) (map[string]domain.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	out := make(map[string]domain.Payload, len(ids))
	for _, id := range ids {
		out[id] = domain.Payload(fmt.Sprintf(`{%q:%v}`, vs, s.price))
	}
	return out, nil
}

type stubNews struct {
	payload atomic.Value
}

func newStubNews(payload string) *stubNews {
	n := &stubNews{}
	n.payload.Store(payload)
	return n
}

func (s *stubNews) FetchLatestNews(context.Context, string) domain.Payload {
	return domain.Payload(s.payload.Load().(string))
}

type stubMemes struct {
	meme atomic.Value
}

func newStubMemes(meme domain.Meme) *stubMemes {
	m := &stubMemes{}
	m.meme.Store(meme)
	return m
}

func (s *stubMemes) FetchMeme(context.Context) domain.Meme {
	return s.meme.Load().(domain.Meme)
}

type countingInsights struct {
	calls atomic.Int32
}

func (s *countingInsights) GenerateInsight(_ context.Context, ic provider.InsightContext) domain.Insight {
	n := s.calls.Add(1)
	return domain.Insight{
		Headline:   "Daily insight for " + ic.Asset,
		Summary:    fmt.Sprintf("take #%d", n),
		AssetFocus: ic.Asset,
		Source:     "stub",
	}
}

type fixture struct {
	store    *content.Store
	prices   *stubPrices
	news     *stubNews
	memes    *stubMemes
	insights *countingInsights
	now      time.Time
	engine   *refresh.Engine
}

func newFixture(t *testing.T, tickers ...string) *fixture {
	t.Helper()

	log := dbtest.DiscardLogger()
	f := &fixture{
		store:    content.NewStore(dbtest.New(t), log),
		prices:   &stubPrices{price: 100},
		news:     newStubNews(`{"results":[{"title":"first"}]}`),
		memes:    newStubMemes(domain.Meme{Title: "gm frens", URL: "data:image/svg+xml;utf8,<svg/>", Source: "fallback"}),
		insights: &countingInsights{},
		now:      time.Date(2026, 3, 3, 0, 5, 0, 0, time.UTC),
	}

	resolver := assets.NewResolverWith(tickers, map[string]string{"BTC": "bitcoin", "ETH": "ethereum"})
	f.engine = refresh.NewEngine(
		resolver,
		f.prices,
		f.news,
		f.memes,
		f.insights,
		f.store,
		clock.Func(func() time.Time { return f.now }),
		refresh.Config{Parallelism: 2},
		log,
	)

	return f
}

func (f *fixture) latest(t *testing.T, kind domain.Kind, asset string) *domain.ContentRecord {
	t.Helper()

	record, err := f.store.LatestForDay(context.Background(), kind, asset, domain.UTCDay(f.now))
	require.NoError(t, err)
	return record
}

func TestRunPersistsEveryKindPerAsset(t *testing.T) {
	f := newFixture(t, "BTC", "ETH")

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-03-03", report.Day)
	require.Equal(t, 2, report.Assets)

	for _, kind := range domain.Kinds {
		require.Equal(t, 2, report.Outcomes[kind][content.OutcomeInserted], kind)
	}

	require.JSONEq(t, `{"usd":100}`, string(f.latest(t, domain.KindPrice, "ethereum").Payload))
	require.JSONEq(t, `{"results":[{"title":"first"}]}`, string(f.latest(t, domain.KindNews, "bitcoin").Payload))
	require.Equal(t, "gm frens", gjson.GetBytes(f.latest(t, domain.KindMeme, "bitcoin").Payload, "title").String())
	require.Equal(t, "bitcoin", gjson.GetBytes(f.latest(t, domain.KindAIInsight, "bitcoin").Payload, "assetFocus").String())
}

func TestSecondRunSameDayKeepsWriteOnceKinds(t *testing.T) {
	f := newFixture(t, "BTC")

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	firstInsight := f.latest(t, domain.KindAIInsight, "bitcoin")

	f.prices.set(200, nil)
	f.news.payload.Store(`{"results":[{"title":"second"}]}`)
	f.now = f.now.Add(6 * time.Hour)

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Outcomes[domain.KindPrice][content.OutcomeKept])
	require.Equal(t, 1, report.Outcomes[domain.KindNews][content.OutcomeKept])
	require.Equal(t, 1, report.Outcomes[domain.KindAIInsight][content.OutcomeReplaced])

	require.JSONEq(t, `{"usd":100}`, string(f.latest(t, domain.KindPrice, "bitcoin").Payload))
	require.JSONEq(t, `{"results":[{"title":"first"}]}`, string(f.latest(t, domain.KindNews, "bitcoin").Payload))

	secondInsight := f.latest(t, domain.KindAIInsight, "bitcoin")
	require.Equal(t, firstInsight.ID, secondInsight.ID)
	require.Equal(t, "take #2", gjson.GetBytes(secondInsight.Payload, "summary").String())
}

func TestLiveMemeReplacesFallbackOnLaterRun(t *testing.T) {
	f := newFixture(t, "BTC")

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	f.memes.meme.Store(domain.Meme{Title: "wen moon", URL: "https://i.imgur.com/x.jpg", Source: "meme-api"})

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Outcomes[domain.KindMeme][content.OutcomeReplaced])
	require.Equal(t, "wen moon", gjson.GetBytes(f.latest(t, domain.KindMeme, "bitcoin").Payload, "title").String())
}

func TestNextDayCreatesFreshRecords(t *testing.T) {
	f := newFixture(t, "BTC")

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	first := f.latest(t, domain.KindPrice, "bitcoin")

	f.now = f.now.AddDate(0, 0, 1)
	f.prices.set(300, nil)

	_, err = f.engine.Run(context.Background())
	require.NoError(t, err)

	second := f.latest(t, domain.KindPrice, "bitcoin")
	require.NotEqual(t, first.ID, second.ID)
	require.JSONEq(t, `{"usd":300}`, string(second.Payload))
}

func TestPriceFailureDoesNotAbortOtherKinds(t *testing.T) {
	f := newFixture(t, "BTC", "ETH")
	f.prices.set(0, fmt.Errorf("%w: 503", domain.ErrProviderUnavailable))

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Outcomes[domain.KindPrice][content.OutcomeSkippedEmpty])

	require.Nil(t, f.latest(t, domain.KindPrice, "bitcoin"))
	require.NotNil(t, f.latest(t, domain.KindNews, "bitcoin"))
	require.NotNil(t, f.latest(t, domain.KindMeme, "ethereum"))
	require.NotNil(t, f.latest(t, domain.KindAIInsight, "ethereum"))
}

func TestNewsErrorDocumentIsNotPersisted(t *testing.T) {
	f := newFixture(t, "BTC")
	f.news.payload.Store(`{"error":"Failed to fetch CryptoPanic posts","details":"503"}`)

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Outcomes[domain.KindNews][content.OutcomeSkippedError])
	require.Nil(t, f.latest(t, domain.KindNews, "bitcoin"))
}

func TestEmptyAssetListSkipsRun(t *testing.T) {
	f := newFixture(t)

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Zero(t, f.insights.calls.Load())
}

type failingWriter struct{}

func (failingWriter) Put(context.Context, domain.Kind, string, domain.Payload, time.Time) (content.Outcome, error) {
	return "", errors.New("disk full")
}

func TestStoreFailuresAreJoined(t *testing.T) {
	engine := refresh.NewEngine(
		assets.NewResolver(),
		&stubPrices{price: 1},
		newStubNews(`{"results":[]}`),
		newStubMemes(domain.Meme{URL: "https://i.imgur.com/x.jpg"}),
		&countingInsights{},
		failingWriter{},
		clock.System{},
		refresh.Config{},
		dbtest.DiscardLogger(),
	)

	report, err := engine.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "persist PRICE (asset = bitcoin)")
	require.ErrorContains(t, err, "persist AI_INSIGHT (asset = dogecoin)")
	require.Equal(t, 10, report.Assets)
}
