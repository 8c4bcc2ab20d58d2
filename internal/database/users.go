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

// EnsureUser registers userID if it is not known yet.
func (d *Database) EnsureUser(ctx context.Context, userID int64, now time.Time) error {
	query := "insert or ignore into users (id, created_at) values (?, ?)"

	if _, err := d.db.ExecContext(ctx, query, userID, now.UnixNano()); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetPreferences returns ErrNotFound for unknown users and defaults for users
// that never saved preferences.
func (d *Database) GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	query := `select p.assets, p.persona, p.market_news, p.charts, p.social, p.fun, u.id
	from users as u
	left join preferences as p
	on p.user_id = u.id
	where u.id = ?`

	var (
		assets                          sql.NullString
		persona                         sql.NullString
		marketNews, charts, social, fun sql.NullBool
		id                              int64
	)

	err := d.db.QueryRowContext(ctx, query, userID).
		Scan(&assets, &persona, &marketNews, &charts, &social, &fun, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan preferences: %w", err)
	}

	prefs := &domain.UserPreferences{
		UserID: userID,
		Topics: domain.AllTopics,
	}

	if !assets.Valid {
		return prefs, nil
	}

	if err = json.Unmarshal([]byte(assets.String), &prefs.Assets); err != nil {
		d.log.WarnContext(ctx, "Failed to decode preferred assets",
			"error", err,
			"userID", userID)

		prefs.Assets = nil
	}

	prefs.Persona = domain.Persona(persona.String)
	prefs.Topics = domain.TopicFlags{
		MarketNews: marketNews.Bool,
		Charts:     charts.Bool,
		Social:     social.Bool,
		Fun:        fun.Bool,
	}

	return prefs, nil
}

func (d *Database) SavePreferences(ctx context.Context, prefs *domain.UserPreferences) error {
	assets := prefs.Assets
	if assets == nil {
		assets = []string{}
	}

	rawAssets, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("encode assets: %w", err)
	}

	query := `insert into preferences (user_id, assets, persona, market_news, charts, social, fun)
	values (?, ?, ?, ?, ?, ?, ?)
	on conflict (user_id) do update
	set assets = excluded.assets,
	persona = excluded.persona,
	market_news = excluded.market_news,
	charts = excluded.charts,
	social = excluded.social,
	fun = excluded.fun`

	_, err = d.db.ExecContext(ctx, query,
		prefs.UserID,
		string(rawAssets),
		string(prefs.Persona),
		prefs.Topics.MarketNews,
		prefs.Topics.Charts,
		prefs.Topics.Social,
		prefs.Topics.Fun)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	return nil
}
