package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/domain"
	"cryptodaily/internal/generator"
)

const (
	snippetMaxLen = 240

	InsightSourceFallback = "fallback"
)

const insightInstructions = `You are a concise crypto assistant.
Provide one short market insight (max 80 words).
Tone: practical, cautious, no investment advice language, no emojis.
Output only the insight sentence(s), no preamble.`

//nolint:gochecknoglobals // Static fallback rotation.
var fallbackIdeas = []string{
	"Watch intraday volatility; momentum above the 20-day trend looks constructive.",
	"Range-trading regime; consider staggered buys near support.",
	"High funding rates suggest caution on leveraged longs.",
	"On-chain activity is rising; keep an eye on network fees.",
	"Liquidity pockets sit just above recent highs; potential squeeze fuel.",
}

// InsightContext is what an insight is written from: the payloads fetched
// for one asset in the same refresh pass.
type InsightContext struct {
	Asset   string
	Persona domain.Persona
	Price   domain.Payload
	News    domain.Payload
	Meme    domain.Payload
}

// InsightService writes a short commentary per asset. Without a generator,
// or when generation fails, it falls back to a canned idea.
type InsightService struct {
	generator generator.Generator
	clock     clock.Clock
	log       *slog.Logger
}

// NewInsightService accepts a nil generator.
func NewInsightService(gen generator.Generator, clk clock.Clock, log *slog.Logger) *InsightService {
	return &InsightService{generator: gen, clock: clk, log: log}
}

func (s *InsightService) GenerateInsight(ctx context.Context, ic InsightContext) domain.Insight {
	now := s.clock.Now()

	persona := ic.Persona
	if persona == "" {
		persona = domain.PersonaHodler
	}

	insight := domain.Insight{
		Date:       domain.UTCDay(now),
		Headline:   "Daily insight for " + ic.Asset,
		AssetFocus: ic.Asset,
	}

	if s.generator != nil {
		summary, err := s.generator.Generate(ctx, generator.Input{
			Instructions: insightInstructions,
			Prompt:       buildInsightPrompt(ic.Asset, persona, ic),
		})
		if err == nil && strings.TrimSpace(summary) != "" {
			insight.Summary = strings.TrimSpace(summary)
			insight.Source = s.generator.Name()
			return insight
		}

		providerFailures.WithLabelValues(s.generator.Name()).Inc()
		s.log.WarnContext(ctx, "Failed to generate insight",
			"asset", ic.Asset,
			"generator", s.generator.Name(),
			"error", err)
	}

	fallbacksServed.WithLabelValues(string(domain.KindAIInsight)).Inc()
	insight.Summary = fallbackBlurb(persona, ic.Asset, now.YearDay())
	insight.Source = InsightSourceFallback

	return insight
}

func buildInsightPrompt(asset string, persona domain.Persona, ic InsightContext) string {
	return fmt.Sprintf(`Write today's insight for %s.
Reader persona: %s
Recent price data: %s
Recent news: %s
Sentiment/meme: %s`,
		asset,
		persona,
		snippet(ic.Price),
		snippet(ic.News),
		snippet(ic.Meme))
}

func snippet(payload domain.Payload) string {
	if domain.IsEmptyPayload(payload) {
		return ""
	}

	runes := []rune(string(payload))
	if len(runes) <= snippetMaxLen {
		return string(runes)
	}

	return string(runes[:snippetMaxLen]) + "..."
}

// fallbackBlurb is stable for an (asset, day) pair and varies across both.
func fallbackBlurb(persona domain.Persona, asset string, yearDay int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(asset))

	idx := (uint32(yearDay) + h.Sum32()) % uint32(len(fallbackIdeas))

	return fmt.Sprintf("%s note on %s: %s", persona, asset, fallbackIdeas[idx])
}
