package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultIndexSize = 4096

type Repository interface {
	GetSnapshot(ctx context.Context, id int64) (*domain.Snapshot, error)
	InsertFeedback(ctx context.Context, entry *domain.FeedbackEntry) (int64, error)
	LatestFeedback(ctx context.Context, snapshotID int64, section domain.Section) (*domain.FeedbackEntry, error)
	ListFeedback(ctx context.Context, snapshotID int64, section domain.Section) ([]domain.FeedbackEntry, error)
}

type ContentLookup interface {
	Get(ctx context.Context, id int64) (*domain.ContentRecord, error)
}

type indexKey struct {
	snapshotID int64
	section    domain.Section
}

// Ledger keeps every vote ever cast and answers "what is the vote now" from
// an LRU index over the newest entry per (snapshot, section).
//
// The index is per process and only cleared by this ledger's own appends.
// Sections without a vote are never cached, so a first vote written by
// another process is always seen; a later change to an already cached
// vote is seen once the entry is evicted.
type Ledger struct {
	repo    Repository
	content ContentLookup
	clock   clock.Clock
	log     *slog.Logger

	// mu orders index fills against appends so a fill never caches a vote
	// older than one already appended.
	mu    sync.Mutex
	index *lru.Cache[indexKey, int]
}

func NewLedger(
	repo Repository,
	content ContentLookup,
	clk clock.Clock,
	indexSize int,
	log *slog.Logger,
) (*Ledger, error) {
	if indexSize <= 0 {
		indexSize = DefaultIndexSize
	}

	index, err := lru.New[indexKey, int](indexSize)
	if err != nil {
		return nil, fmt.Errorf("create vote index: %w", err)
	}

	return &Ledger{
		repo:    repo,
		content: content,
		clock:   clk,
		log:     log,
		index:   index,
	}, nil
}

// RecordVote appends a vote. contentID is optional and must reference
// stored content when given.
func (l *Ledger) RecordVote(
	ctx context.Context,
	snapshotID int64,
	section domain.Section,
	vote int,
	contentID *int64,
) (*domain.FeedbackEntry, error) {
	if vote < -1 || vote > 1 {
		return nil, fmt.Errorf("%w (vote = %d)", domain.ErrInvalidVote, vote)
	}
	if _, err := domain.ParseSection(string(section)); err != nil {
		return nil, fmt.Errorf("%w: %w (section = %q)", domain.ErrInvalidVote, err, section)
	}

	if _, err := l.repo.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if contentID != nil {
		if _, err := l.content.Get(ctx, *contentID); err != nil {
			return nil, fmt.Errorf("get voted content: %w", err)
		}
	}

	entry := &domain.FeedbackEntry{
		SnapshotID: snapshotID,
		Section:    section,
		ContentID:  contentID,
		Vote:       vote,
		CreatedAt:  l.clock.Now().UTC(),
	}

	l.mu.Lock()
	id, err := l.repo.InsertFeedback(ctx, entry)
	l.index.Remove(indexKey{snapshotID: snapshotID, section: section})
	l.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("append vote: %w", err)
	}
	entry.ID = id

	votesRecorded.WithLabelValues(string(section), strconv.Itoa(vote)).Inc()
	l.log.InfoContext(ctx, "Vote recorded",
		"snapshotID", snapshotID,
		"section", section,
		"vote", vote,
		"feedbackID", id)

	return entry, nil
}

// CurrentVote returns the newest vote for the section. The second result
// is false when nobody voted yet.
func (l *Ledger) CurrentVote(ctx context.Context, snapshotID int64, section domain.Section) (int, bool, error) {
	key := indexKey{snapshotID: snapshotID, section: section}

	if vote, ok := l.index.Get(key); ok {
		currentVoteLookups.WithLabelValues("hit").Inc()
		return vote, true, nil
	}
	currentVoteLookups.WithLabelValues("miss").Inc()

	l.mu.Lock()
	defer l.mu.Unlock()

	latest, err := l.repo.LatestFeedback(ctx, snapshotID, section)
	if err != nil {
		return 0, false, fmt.Errorf("get latest feedback: %w", err)
	}

	if latest == nil {
		return 0, false, nil
	}
	l.index.Add(key, latest.Vote)

	return latest.Vote, true, nil
}

// CurrentVotes lists the current vote of every section that has one.
func (l *Ledger) CurrentVotes(ctx context.Context, snapshotID int64) (map[domain.Section]int, error) {
	votes := make(map[domain.Section]int, len(domain.Sections))

	for _, section := range domain.Sections {
		vote, ok, err := l.CurrentVote(ctx, snapshotID, section)
		if err != nil {
			return nil, err
		}
		if ok {
			votes[section] = vote
		}
	}

	return votes, nil
}

// History returns every vote cast on the section, oldest first.
func (l *Ledger) History(ctx context.Context, snapshotID int64, section domain.Section) ([]domain.FeedbackEntry, error) {
	entries, err := l.repo.ListFeedback(ctx, snapshotID, section)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	return entries, nil
}
