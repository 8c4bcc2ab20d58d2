package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidVote         = errors.New("vote must be -1, 0, or 1")
	ErrInvalidSection      = errors.New("unknown section")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

const dayLayout = "2006-01-02"

type Kind string

const (
	KindPrice     Kind = "PRICE"
	KindNews      Kind = "NEWS"
	KindMeme      Kind = "MEME"
	KindAIInsight Kind = "AI_INSIGHT"
)

// Kinds lists every content kind in composition order.
var Kinds = []Kind{KindNews, KindPrice, KindMeme, KindAIInsight}

type Section string

const (
	SectionMarketNews Section = "MARKET_NEWS"
	SectionCoinPrices Section = "COIN_PRICES"
	SectionMeme       Section = "MEME"
	SectionAIInsight  Section = "AI_INSIGHT"
)

var Sections = []Section{SectionMarketNews, SectionCoinPrices, SectionMeme, SectionAIInsight}

func ParseSection(s string) (Section, error) {
	for _, section := range Sections {
		if string(section) == s {
			return section, nil
		}
	}

	return "", ErrInvalidSection
}

// SectionOf maps a content kind to the snapshot section that shows it.
func SectionOf(kind Kind) Section {
	switch kind {
	case KindNews:
		return SectionMarketNews
	case KindPrice:
		return SectionCoinPrices
	case KindMeme:
		return SectionMeme
	case KindAIInsight:
		return SectionAIInsight
	default:
		return ""
	}
}

// Payload is a stored JSON document. Provider-defined shapes (prices, news)
// stay opaque; shapes the system produces have typed counterparts below.
type Payload = json.RawMessage

// IsEmptyPayload reports whether p carries nothing worth persisting.
func IsEmptyPayload(p Payload) bool {
	trimmed := bytes.TrimSpace(p)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return true
	default:
		return false
	}
}

// CorruptPayload replaces stored content that can no longer be parsed.
var CorruptPayload = Payload(`{"error":"Failed to parse stored content"}`)

type ContentRecord struct {
	ID        int64
	Kind      Kind
	Asset     string
	Payload   Payload
	FetchedAt time.Time
}

type Meme struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	ServedAt string `json:"servedAt"`
	Source   string `json:"source"`
}

type Insight struct {
	Date       string `json:"date"`
	Headline   string `json:"headline"`
	Summary    string `json:"summary"`
	AssetFocus string `json:"assetFocus"`
	Source     string `json:"source"`
}

type Persona string

const (
	PersonaHodler           Persona = "HODLER"
	PersonaDayTrader        Persona = "DAY_TRADER"
	PersonaNFTCollector     Persona = "NFT_COLLECTOR"
	PersonaDefiDegen        Persona = "DEFI_DGEN"
	PersonaLongTermInvestor Persona = "LONG_TERM_INVESTOR"
)

var Personas = []Persona{
	PersonaHodler,
	PersonaDayTrader,
	PersonaNFTCollector,
	PersonaDefiDegen,
	PersonaLongTermInvestor,
}

type TopicFlags struct {
	MarketNews bool
	Charts     bool
	Social     bool
	Fun        bool
}

// AllTopics is what a user without explicit topic choices sees.
var AllTopics = TopicFlags{MarketNews: true, Charts: true, Social: true, Fun: true}

type UserPreferences struct {
	UserID  int64
	Assets  []string
	Persona Persona
	Topics  TopicFlags
}

// SectionEntry is one asset's leaf in a snapshot section.
type SectionEntry struct {
	ContentID int64   `json:"contentId"`
	Data      Payload `json:"data"`
}

type SectionContent map[string]SectionEntry

// Snapshot is a stored daily view. Composed is false until its sections
// are saved for the first time.
type Snapshot struct {
	ID           int64
	UserID       int64
	SnapshotDate string
	Sections     map[Section]SectionContent
	Composed     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SnapshotView struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	SnapshotDate string          `json:"snapshotDate"`
	MarketNews   SectionContent  `json:"marketNews"`
	CoinPrices   SectionContent  `json:"coinPrices"`
	Meme         SectionContent  `json:"meme"`
	AIInsight    SectionContent  `json:"aiInsight"`
	Votes        map[Section]int `json:"votes"`
}

type FeedbackEntry struct {
	ID         int64
	SnapshotID int64
	Section    Section
	ContentID  *int64
	Vote       int
	CreatedAt  time.Time
}

// DayKey formats the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	return t.In(loc).Format(dayLayout)
}

// UTCDay is the calendar day used for content caching.
func UTCDay(t time.Time) string {
	return DayKey(t, time.UTC)
}
