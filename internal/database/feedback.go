package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryptodaily/internal/domain"
)

const feedbackColumns = "id, snapshot_id, section, content_id, vote, created_at"

func (d *Database) InsertFeedback(ctx context.Context, entry *domain.FeedbackEntry) (int64, error) {
	query := `insert into feedback (snapshot_id, section, content_id, vote, created_at)
	values (?, ?, ?, ?, ?)`

	var contentID sql.NullInt64
	if entry.ContentID != nil {
		contentID = sql.NullInt64{Int64: *entry.ContentID, Valid: true}
	}

	res, err := d.db.ExecContext(ctx, query,
		entry.SnapshotID,
		string(entry.Section),
		contentID,
		entry.Vote,
		entry.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// LatestFeedback returns nil when nobody voted on the section yet.
func (d *Database) LatestFeedback(
	ctx context.Context,
	snapshotID int64,
	section domain.Section,
) (*domain.FeedbackEntry, error) {
	query := `select ` + feedbackColumns + `
	from feedback
	where snapshot_id = ? and section = ?
	order by created_at desc, id desc
	limit 1`

	row := d.db.QueryRowContext(ctx, query, snapshotID, string(section))

	entry, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // No vote is a regular outcome.
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListFeedback returns the full vote history of a section, oldest first.
func (d *Database) ListFeedback(
	ctx context.Context,
	snapshotID int64,
	section domain.Section,
) ([]domain.FeedbackEntry, error) {
	query := `select ` + feedbackColumns + `
	from feedback
	where snapshot_id = ? and section = ?
	order by created_at, id`

	rows, err := d.db.QueryContext(ctx, query, snapshotID, string(section))
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListFeedback")

	var entries []domain.FeedbackEntry
	for rows.Next() {
		entry, scanErr := scanFeedback(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(s scanner) (*domain.FeedbackEntry, error) {
	var (
		entry     domain.FeedbackEntry
		section   string
		contentID sql.NullInt64
		createdAt int64
	)

	err := s.Scan(&entry.ID, &entry.SnapshotID, &section, &contentID, &entry.Vote, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback: %w", err)
	}

	entry.Section = domain.Section(section)
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	if contentID.Valid {
		id := contentID.Int64
		entry.ContentID = &id
	}

	return &entry, nil
}
