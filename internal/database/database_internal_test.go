package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cryptodaily/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	return db
}

func TestNewIsIdempotentAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	first, err := New(context.Background(), path, log)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(context.Background(), path, log)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestInsertContentRejectsSecondRecordForSameDay(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	record := &domain.ContentRecord{Kind: domain.KindPrice, Asset: "bitcoin", Payload: domain.Payload(`{"usd":1}`), FetchedAt: now}

	id, inserted, err := db.InsertContent(ctx, record, "2025-03-01")
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotZero(t, id)

	record.Payload = domain.Payload(`{"usd":2}`)
	_, inserted, err = db.InsertContent(ctx, record, "2025-03-01")
	require.NoError(t, err)
	require.False(t, inserted)

	got, err := db.LatestContentForDay(ctx, domain.KindPrice, "bitcoin", "2025-03-01")
	require.NoError(t, err)
	require.JSONEq(t, `{"usd":1}`, string(got.Payload))
	require.True(t, got.FetchedAt.Equal(now))
}

func TestLatestContentOrdersByFetchedAt(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	day1 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	_, _, err := db.InsertContent(ctx, &domain.ContentRecord{Kind: domain.KindNews, Asset: "ethereum", Payload: domain.Payload(`{"n":2}`), FetchedAt: day2}, "2025-03-02")
	require.NoError(t, err)
	_, _, err = db.InsertContent(ctx, &domain.ContentRecord{Kind: domain.KindNews, Asset: "bitcoin", Payload: domain.Payload(`{"n":1}`), FetchedAt: day1}, "2025-03-01")
	require.NoError(t, err)

	got, err := db.LatestContent(ctx, domain.KindNews)
	require.NoError(t, err)
	require.Equal(t, "ethereum", got.Asset)

	none, err := db.LatestContent(ctx, domain.KindMeme)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestCorruptStoredPayloadIsReplacedByMarker(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	_, err := db.db.ExecContext(ctx,
		"insert into content (kind, asset, day, payload, fetched_at) values ('NEWS', 'bitcoin', '2025-03-01', '{broken', 1)")
	require.NoError(t, err)

	got, err := db.LatestContentForDay(ctx, domain.KindNews, "bitcoin", "2025-03-01")
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"Failed to parse stored content"}`, string(got.Payload))
}

func TestGetContentUnknownID(t *testing.T) {
	_, err := newTestDatabase(t).GetContent(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateSnapshotDetectsConflict(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.EnsureUser(ctx, 7, now))

	created, err := db.CreateSnapshot(ctx, 7, "2025-03-01", now)
	require.NoError(t, err)
	require.True(t, created)

	created, err = db.CreateSnapshot(ctx, 7, "2025-03-01", now)
	require.NoError(t, err)
	require.False(t, created)

	snapshot, err := db.GetSnapshotByUserDate(ctx, 7, "2025-03-01")
	require.NoError(t, err)
	require.Empty(t, snapshot.Sections[domain.SectionMarketNews])
	require.False(t, snapshot.Composed)
}

func TestSnapshotSectionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.EnsureUser(ctx, 7, now))
	_, err := db.CreateSnapshot(ctx, 7, "2025-03-01", now)
	require.NoError(t, err)

	snapshot, err := db.GetSnapshotByUserDate(ctx, 7, "2025-03-01")
	require.NoError(t, err)

	sections := map[domain.Section]domain.SectionContent{
		domain.SectionCoinPrices: {"bitcoin": {ContentID: 3, Data: domain.Payload(`{"usd":100}`)}},
	}
	require.NoError(t, db.SaveSnapshotSections(ctx, snapshot.ID, sections, now.Add(time.Minute)))

	reloaded, err := db.GetSnapshot(ctx, snapshot.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Composed)
	require.Equal(t, int64(3), reloaded.Sections[domain.SectionCoinPrices]["bitcoin"].ContentID)
	require.JSONEq(t, `{"usd":100}`, string(reloaded.Sections[domain.SectionCoinPrices]["bitcoin"].Data))
	require.Empty(t, reloaded.Sections[domain.SectionMeme])
}

func TestCorruptSnapshotSectionIsMarked(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.EnsureUser(ctx, 7, now))
	_, err := db.CreateSnapshot(ctx, 7, "2025-03-01", now)
	require.NoError(t, err)

	_, err = db.db.ExecContext(ctx, "update snapshots set meme = 'nope' where user_id = 7")
	require.NoError(t, err)

	snapshot, err := db.GetSnapshotByUserDate(ctx, 7, "2025-03-01")
	require.NoError(t, err)
	require.JSONEq(t, string(domain.CorruptPayload), string(snapshot.Sections[domain.SectionMeme]["error"].Data))
}

func TestPreferencesDefaultsAndUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	_, err := db.GetPreferences(ctx, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, db.EnsureUser(ctx, 1, time.Now()))

	prefs, err := db.GetPreferences(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, prefs.Assets)
	require.Equal(t, domain.AllTopics, prefs.Topics)

	require.NoError(t, db.SavePreferences(ctx, &domain.UserPreferences{
		UserID:  1,
		Assets:  []string{"BTC", "ETH"},
		Persona: domain.PersonaDayTrader,
		Topics:  domain.TopicFlags{MarketNews: true},
	}))

	prefs, err = db.GetPreferences(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"BTC", "ETH"}, prefs.Assets)
	require.Equal(t, domain.PersonaDayTrader, prefs.Persona)
	require.Equal(t, domain.TopicFlags{MarketNews: true}, prefs.Topics)
}

func TestFeedbackHistoryOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.EnsureUser(ctx, 7, now))
	_, err := db.CreateSnapshot(ctx, 7, "2025-03-01", now)
	require.NoError(t, err)
	snapshot, err := db.GetSnapshotByUserDate(ctx, 7, "2025-03-01")
	require.NoError(t, err)

	for i, vote := range []int{1, -1} {
		_, err = db.InsertFeedback(ctx, &domain.FeedbackEntry{
			SnapshotID: snapshot.ID,
			Section:    domain.SectionMeme,
			Vote:       vote,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	latest, err := db.LatestFeedback(ctx, snapshot.ID, domain.SectionMeme)
	require.NoError(t, err)
	require.Equal(t, -1, latest.Vote)
	require.Nil(t, latest.ContentID)

	history, err := db.ListFeedback(ctx, snapshot.ID, domain.SectionMeme)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1, history[0].Vote)

	none, err := db.LatestFeedback(ctx, snapshot.ID, domain.SectionAIInsight)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestQueryErrorsPropagate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewWithDB(sqlDB, slog.New(slog.NewTextHandler(io.Discard, nil)))
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("select exists").WillReturnError(boom)
	_, err = db.ContentExistsForDay(context.Background(), domain.KindPrice, "bitcoin", "2025-03-01")
	require.ErrorIs(t, err, boom)

	mock.ExpectExec("insert into content").WillReturnError(boom)
	_, _, err = db.InsertContent(context.Background(), &domain.ContentRecord{Kind: domain.KindPrice, Asset: "bitcoin", Payload: domain.Payload(`{}`)}, "2025-03-01")
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}
