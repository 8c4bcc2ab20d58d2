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

const contentColumns = "id, kind, asset, payload, fetched_at"

// InsertContent adds a record for day unless one already exists. The second
// result is false when the (kind, asset, day) key was taken.
func (d *Database) InsertContent(
	ctx context.Context,
	record *domain.ContentRecord,
	day string,
) (int64, bool, error) {
	query := `insert into content (kind, asset, day, payload, fetched_at)
	values (?, ?, ?, ?, ?)
	on conflict (kind, asset, day) do nothing`

	res, err := d.db.ExecContext(ctx, query,
		string(record.Kind),
		record.Asset,
		day,
		string(record.Payload),
		record.FetchedAt.UnixNano())
	if err != nil {
		return 0, false, fmt.Errorf("insert content: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("get last insert id: %w", err)
	}

	return id, true, nil
}

func (d *Database) UpdateContent(
	ctx context.Context,
	id int64,
	payload domain.Payload,
	fetchedAt time.Time,
) error {
	query := "update content set payload = ?, fetched_at = ? where id = ?"

	res, err := d.db.ExecContext(ctx, query, string(payload), fetchedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("content %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// LatestContentForDay returns nil when nothing is stored for the key.
func (d *Database) LatestContentForDay(
	ctx context.Context,
	kind domain.Kind,
	asset string,
	day string,
) (*domain.ContentRecord, error) {
	query := `select ` + contentColumns + `
	from content
	where kind = ? and asset = ? and day = ?
	order by fetched_at desc, id desc
	limit 1`

	return d.queryContent(ctx, "LatestContentForDay", query, string(kind), asset, day)
}

// LatestContent returns the newest record of kind across assets and days.
func (d *Database) LatestContent(ctx context.Context, kind domain.Kind) (*domain.ContentRecord, error) {
	query := `select ` + contentColumns + `
	from content
	where kind = ?
	order by fetched_at desc, id desc
	limit 1`

	return d.queryContent(ctx, "LatestContent", query, string(kind))
}

func (d *Database) ContentExistsForDay(
	ctx context.Context,
	kind domain.Kind,
	asset string,
	day string,
) (bool, error) {
	query := "select exists (select 1 from content where kind = ? and asset = ? and day = ?)"

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, string(kind), asset, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("check content existence: %w", err)
	}

	return exists, nil
}

func (d *Database) GetContent(ctx context.Context, id int64) (*domain.ContentRecord, error) {
	query := `select ` + contentColumns + ` from content where id = ?`

	record, err := d.queryContent(ctx, "GetContent", query, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("content %d: %w", id, domain.ErrNotFound)
	}

	return record, nil
}

func (d *Database) queryContent(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) (*domain.ContentRecord, error) {
	var (
		record    domain.ContentRecord
		kind      string
		payload   string
		fetchedAt int64
	)

	err := d.db.QueryRowContext(ctx, query, args...).
		Scan(&record.ID, &kind, &record.Asset, &payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Absence is a regular outcome for cache lookups.
	}
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	record.Kind = domain.Kind(kind)
	record.FetchedAt = time.Unix(0, fetchedAt).UTC()
	record.Payload = domain.Payload(payload)

	if !json.Valid(record.Payload) {
		d.log.WarnContext(ctx, "Stored content is not valid JSON",
			"contentID", record.ID,
			"kind", kind,
			"asset", record.Asset,
			"operation", operation)

		record.Payload = domain.CorruptPayload
	}

	return &record, nil
}
