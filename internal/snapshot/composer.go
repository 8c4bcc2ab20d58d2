package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	modeCreated   = "created"
	modeCached    = "cached"
	modeRefreshed = "refreshed"
)

type Repository interface {
	GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error)
	CreateSnapshot(ctx context.Context, userID int64, date string, now time.Time) (bool, error)
	GetSnapshotByUserDate(ctx context.Context, userID int64, date string) (*domain.Snapshot, error)
	SaveSnapshotSections(
		ctx context.Context,
		id int64,
		sections map[domain.Section]domain.SectionContent,
		now time.Time,
	) error
}

type ContentReader interface {
	LatestForDay(ctx context.Context, kind domain.Kind, asset string, day string) (*domain.ContentRecord, error)
	LatestAny(ctx context.Context, kind domain.Kind) (*domain.ContentRecord, error)
}

type VoteReader interface {
	CurrentVotes(ctx context.Context, snapshotID int64) (map[domain.Section]int, error)
}

type AssetResolver interface {
	ResolveAll(tickers []string) []string
	SupportedIDs() []string
}

// Composer assembles each user's daily view from cached content. A view is
// computed once per user and snapshot day and then served unchanged until
// a refresh is forced.
type Composer struct {
	repo     Repository
	content  ContentReader
	votes    VoteReader
	resolver AssetResolver
	clock    clock.Clock
	location *time.Location
	flight   singleflight.Group
	log      *slog.Logger
}

// NewComposer keys snapshots by the calendar day in location; nil means UTC.
func NewComposer(
	repo Repository,
	content ContentReader,
	votes VoteReader,
	resolver AssetResolver,
	clk clock.Clock,
	location *time.Location,
	log *slog.Logger,
) *Composer {
	if location == nil {
		location = time.UTC
	}

	return &Composer{
		repo:     repo,
		content:  content,
		votes:    votes,
		resolver: resolver,
		clock:    clk,
		location: location,
		log:      log,
	}
}

func (c *Composer) ComposeOrGet(ctx context.Context, userID int64, forceRefresh bool) (*domain.SnapshotView, error) {
	now := c.clock.Now()
	date := domain.DayKey(now, c.location)

	key := fmt.Sprintf("%d/%s/%t", userID, date, forceRefresh)
	v, err, _ := c.flight.Do(key, func() (any, error) {
		return c.composeOrGet(ctx, userID, date, now, forceRefresh)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.SnapshotView), nil
}

func (c *Composer) composeOrGet(
	ctx context.Context,
	userID int64,
	date string,
	now time.Time,
	forceRefresh bool,
) (*domain.SnapshotView, error) {
	prefs, err := c.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences (userID = %d): %w", userID, err)
	}

	snapshot, err := c.repo.GetSnapshotByUserDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	mode := modeCached
	if snapshot == nil {
		created, err := c.repo.CreateSnapshot(ctx, userID, date, now)
		if err != nil {
			return nil, fmt.Errorf("create snapshot: %w", err)
		}
		if created {
			mode = modeCreated
		}

		if snapshot, err = c.repo.GetSnapshotByUserDate(ctx, userID, date); err != nil {
			return nil, fmt.Errorf("get snapshot: %w", err)
		}
		if snapshot == nil {
			return nil, fmt.Errorf("snapshot vanished after create (userID = %d, date = %s): %w",
				userID, date, domain.ErrNotFound)
		}
	}

	// An uncomposed row was left by a failed first composition or belongs
	// to a caller that has not saved it yet.
	if mode == modeCached && !snapshot.Composed {
		mode = modeCreated
	}
	if forceRefresh {
		mode = modeRefreshed
	}

	if mode != modeCached {
		sections, err := c.composeSections(ctx, prefs, now)
		if err != nil {
			return nil, err
		}

		if err = c.repo.SaveSnapshotSections(ctx, snapshot.ID, sections, now); err != nil {
			return nil, fmt.Errorf("save snapshot sections: %w", err)
		}

		// Read back so fresh and cached responses share one encoding.
		if snapshot, err = c.repo.GetSnapshotByUserDate(ctx, userID, date); err != nil {
			return nil, fmt.Errorf("get snapshot: %w", err)
		}
		if snapshot == nil {
			return nil, fmt.Errorf("snapshot vanished after save (userID = %d, date = %s): %w",
				userID, date, domain.ErrNotFound)
		}
	}

	votes, err := c.votes.CurrentVotes(ctx, snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("get current votes: %w", err)
	}

	compositions.WithLabelValues(mode).Inc()
	c.log.DebugContext(ctx, "Snapshot served",
		"userID", userID,
		"snapshotID", snapshot.ID,
		"date", date,
		"mode", mode)

	return &domain.SnapshotView{
		ID:           snapshot.ID,
		UserID:       snapshot.UserID,
		SnapshotDate: snapshot.SnapshotDate,
		MarketNews:   snapshot.Sections[domain.SectionMarketNews],
		CoinPrices:   snapshot.Sections[domain.SectionCoinPrices],
		Meme:         snapshot.Sections[domain.SectionMeme],
		AIInsight:    snapshot.Sections[domain.SectionAIInsight],
		Votes:        votes,
	}, nil
}

// WorkingSet is the ordered asset id list a user's snapshot covers.
func (c *Composer) WorkingSet(prefs *domain.UserPreferences) []string {
	var ids []string
	if prefs != nil {
		ids = c.resolver.ResolveAll(prefs.Assets)
	}
	if len(ids) == 0 {
		ids = c.resolver.SupportedIDs()
	}

	return ids
}

func (c *Composer) composeSections(
	ctx context.Context,
	prefs *domain.UserPreferences,
	now time.Time,
) (map[domain.Section]domain.SectionContent, error) {
	assets := c.WorkingSet(prefs)
	day := domain.UTCDay(now)

	sections := make(map[domain.Section]domain.SectionContent, len(domain.Sections))
	for _, section := range domain.Sections {
		sections[section] = domain.SectionContent{}
	}

	var errs []error
	for _, asset := range assets {
		for _, kind := range domain.Kinds {
			record, err := c.content.LatestForDay(ctx, kind, asset, day)
			if err != nil {
				errs = append(errs, fmt.Errorf("get %s (asset = %s): %w", kind, asset, err))
				continue
			}
			if record == nil {
				continue
			}

			sections[domain.SectionOf(kind)][asset] = entryOf(record)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := c.fillMissingNews(ctx, assets, sections[domain.SectionMarketNews]); err != nil {
		return nil, err
	}

	return sections, nil
}

// fillMissingNews fills gaps in the news section. When no asset has news
// for today, every asset gets the newest news record on file. Otherwise
// assets without news borrow the first present one in working-set order.
func (c *Composer) fillMissingNews(ctx context.Context, assets []string, news domain.SectionContent) error {
	if len(news) == 0 {
		record, err := c.content.LatestAny(ctx, domain.KindNews)
		if err != nil {
			return fmt.Errorf("get latest news: %w", err)
		}
		if record == nil {
			return nil
		}

		entry := entryOf(record)
		for _, asset := range assets {
			news[asset] = entry
		}
		newsSubstitutions.WithLabelValues("history").Add(float64(len(assets)))

		return nil
	}

	var peer domain.SectionEntry
	for _, asset := range assets {
		if entry, ok := news[asset]; ok {
			peer = entry
			break
		}
	}

	for _, asset := range assets {
		if _, ok := news[asset]; ok {
			continue
		}

		news[asset] = peer
		newsSubstitutions.WithLabelValues("peer").Inc()
	}

	return nil
}

func entryOf(record *domain.ContentRecord) domain.SectionEntry {
	return domain.SectionEntry{ContentID: record.ID, Data: record.Payload}
}
