package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptodaily/internal/domain"
)

const snapshotColumns = "id, user_id, snapshot_date, market_news, coin_prices, meme, ai_insight, created_at, updated_at"

// CreateSnapshot inserts an empty snapshot row for (userID, date). It
// reports false when another writer created the row first.
func (d *Database) CreateSnapshot(
	ctx context.Context,
	userID int64,
	date string,
	now time.Time,
) (bool, error) {
	query := `insert into snapshots (user_id, snapshot_date, created_at, updated_at)
	values (?, ?, ?, ?)
	on conflict (user_id, snapshot_date) do nothing`

	res, err := d.db.ExecContext(ctx, query, userID, date, now.UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return affected == 1, nil
}

// GetSnapshotByUserDate returns nil when the user has no snapshot for date.
func (d *Database) GetSnapshotByUserDate(
	ctx context.Context,
	userID int64,
	date string,
) (*domain.Snapshot, error) {
	query := `select ` + snapshotColumns + `
	from snapshots
	where user_id = ? and snapshot_date = ?`

	return d.querySnapshot(ctx, query, userID, date)
}

func (d *Database) GetSnapshot(ctx context.Context, id int64) (*domain.Snapshot, error) {
	query := `select ` + snapshotColumns + ` from snapshots where id = ?`

	snapshot, err := d.querySnapshot(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot %d: %w", id, domain.ErrNotFound)
	}

	return snapshot, nil
}

func (d *Database) SaveSnapshotSections(
	ctx context.Context,
	id int64,
	sections map[domain.Section]domain.SectionContent,
	now time.Time,
) error {
	encoded := make(map[domain.Section]string, len(domain.Sections))
	for _, section := range domain.Sections {
		content := sections[section]
		if content == nil {
			content = domain.SectionContent{}
		}

		raw, err := json.Marshal(content)
		if err != nil {
			return fmt.Errorf("encode section %s: %w", section, err)
		}
		encoded[section] = string(raw)
	}

	query := `update snapshots
	set market_news = ?, coin_prices = ?, meme = ?, ai_insight = ?, updated_at = ?
	where id = ?`

	res, err := d.db.ExecContext(ctx, query,
		encoded[domain.SectionMarketNews],
		encoded[domain.SectionCoinPrices],
		encoded[domain.SectionMeme],
		encoded[domain.SectionAIInsight],
		now.UnixNano(),
		id)
	if err != nil {
		return fmt.Errorf("update snapshot sections: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (d *Database) querySnapshot(ctx context.Context, query string, args ...any) (*domain.Snapshot, error) {
	var (
		s         domain.Snapshot
		raw       [4]sql.NullString
		createdAt int64
		updatedAt int64
	)

	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID,
		&s.UserID,
		&s.SnapshotDate,
		&raw[0],
		&raw[1],
		&raw[2],
		&raw[3],
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Absence drives lazy creation.
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	s.CreatedAt = time.Unix(0, createdAt).UTC()
	s.UpdatedAt = time.Unix(0, updatedAt).UTC()
	s.Sections = make(map[domain.Section]domain.SectionContent, len(domain.Sections))

	for i, section := range domain.Sections {
		s.Sections[section] = d.decodeSection(ctx, s.ID, section, raw[i])
		s.Composed = s.Composed || raw[i].Valid
	}

	return &s, nil
}

// decodeSection never fails: unreadable section JSON is replaced by a single
// "error" entry carrying the corrupt payload marker.
func (d *Database) decodeSection(
	ctx context.Context,
	snapshotID int64,
	section domain.Section,
	raw sql.NullString,
) domain.SectionContent {
	if !raw.Valid || raw.String == "" {
		return domain.SectionContent{}
	}

	var content domain.SectionContent
	if err := json.Unmarshal([]byte(raw.String), &content); err != nil {
		d.log.WarnContext(ctx, "Failed to decode snapshot section",
			"error", err,
			"snapshotID", snapshotID,
			"section", section)

		return domain.SectionContent{"error": {Data: domain.CorruptPayload}}
	}
	if content == nil {
		content = domain.SectionContent{}
	}

	return content
}
