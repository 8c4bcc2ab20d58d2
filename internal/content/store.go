package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cryptodaily/internal/domain"
)

// putAttempts bounds how often Put re-evaluates after losing an insert race.
const putAttempts = 2

type Outcome string

const (
	OutcomeInserted     Outcome = "inserted"
	OutcomeReplaced     Outcome = "replaced"
	OutcomeKept         Outcome = "kept"
	OutcomeSkippedEmpty Outcome = "skipped_empty"
	OutcomeSkippedError Outcome = "skipped_error"
)

// Repository is the persistence the store needs; *database.Database
// satisfies it.
type Repository interface {
	InsertContent(ctx context.Context, record *domain.ContentRecord, day string) (int64, bool, error)
	UpdateContent(ctx context.Context, id int64, payload domain.Payload, fetchedAt time.Time) error
	LatestContentForDay(ctx context.Context, kind domain.Kind, asset string, day string) (*domain.ContentRecord, error)
	LatestContent(ctx context.Context, kind domain.Kind) (*domain.ContentRecord, error)
	ContentExistsForDay(ctx context.Context, kind domain.Kind, asset string, day string) (bool, error)
	GetContent(ctx context.Context, id int64) (*domain.ContentRecord, error)
}

// Store caches provider payloads per (kind, asset, UTC day) and decides per
// kind whether a new payload is inserted, replaces today's record, or is
// dropped.
type Store struct {
	repo Repository
	log  *slog.Logger
}

func NewStore(repo Repository, log *slog.Logger) *Store {
	return &Store{repo: repo, log: log}
}

func (s *Store) Put(
	ctx context.Context,
	kind domain.Kind,
	asset string,
	payload domain.Payload,
	now time.Time,
) (Outcome, error) {
	outcome, err := s.put(ctx, kind, asset, payload, now)
	if err != nil {
		contentWrites.WithLabelValues(string(kind), "error").Inc()
		return "", err
	}

	contentWrites.WithLabelValues(string(kind), string(outcome)).Inc()

	return outcome, nil
}

func (s *Store) put(
	ctx context.Context,
	kind domain.Kind,
	asset string,
	payload domain.Payload,
	now time.Time,
) (Outcome, error) {
	if domain.IsEmptyPayload(payload) {
		return OutcomeSkippedEmpty, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", fmt.Errorf("compact %s payload (asset = %s): %w", kind, asset, err)
	}
	payload = compact.Bytes()

	if kind == domain.KindNews && HasErrorMarker(payload) {
		s.log.WarnContext(ctx, "Skipping news persistence due to error payload",
			"asset", asset)

		return OutcomeSkippedError, nil
	}

	day := domain.UTCDay(now)

	for range putAttempts {
		existing, err := s.repo.LatestContentForDay(ctx, kind, asset, day)
		if err != nil {
			return "", fmt.Errorf("get latest content for day: %w", err)
		}

		if existing != nil {
			return s.applyPolicy(ctx, existing, payload, now)
		}

		_, inserted, err := s.repo.InsertContent(ctx, &domain.ContentRecord{
			Kind:      kind,
			Asset:     asset,
			Payload:   payload,
			FetchedAt: now,
		}, day)
		if err != nil {
			return "", fmt.Errorf("insert content: %w", err)
		}
		if inserted {
			return OutcomeInserted, nil
		}

		s.log.DebugContext(ctx, "Lost content insert race, re-evaluating",
			"kind", kind,
			"asset", asset,
			"day", day)
	}

	return OutcomeKept, nil
}

func (s *Store) applyPolicy(
	ctx context.Context,
	existing *domain.ContentRecord,
	payload domain.Payload,
	now time.Time,
) (Outcome, error) {
	switch existing.Kind {
	case domain.KindMeme:
		if !IsFallbackMeme(existing.Payload) || !IsValidMeme(payload) {
			return OutcomeKept, nil
		}
	case domain.KindAIInsight:
	default:
		return OutcomeKept, nil
	}

	if err := s.repo.UpdateContent(ctx, existing.ID, payload, now); err != nil {
		return "", fmt.Errorf("replace content: %w", err)
	}

	s.log.DebugContext(ctx, "Replaced today's content",
		"kind", existing.Kind,
		"asset", existing.Asset,
		"contentID", existing.ID)

	return OutcomeReplaced, nil
}

// LatestForDay returns the authoritative record for the exact UTC day, or nil.
func (s *Store) LatestForDay(
	ctx context.Context,
	kind domain.Kind,
	asset string,
	day string,
) (*domain.ContentRecord, error) {
	record, err := s.repo.LatestContentForDay(ctx, kind, asset, day)
	if err != nil {
		return nil, fmt.Errorf("get latest content for day: %w", err)
	}

	return record, nil
}

// LatestAny returns the newest record of kind across assets and days, or nil.
func (s *Store) LatestAny(ctx context.Context, kind domain.Kind) (*domain.ContentRecord, error) {
	record, err := s.repo.LatestContent(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("get latest content: %w", err)
	}

	return record, nil
}

func (s *Store) ExistsForDay(ctx context.Context, kind domain.Kind, asset string, day string) (bool, error) {
	exists, err := s.repo.ContentExistsForDay(ctx, kind, asset, day)
	if err != nil {
		return false, fmt.Errorf("check content for day: %w", err)
	}

	return exists, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*domain.ContentRecord, error) {
	record, err := s.repo.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}

	return record, nil
}
