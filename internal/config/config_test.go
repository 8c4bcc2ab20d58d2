package config_test

import (
	"log/slog"
	"testing"
	"time"

	"cryptodaily/internal/config"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "cryptodaily.sqlite", cfg.DBPath)
	require.Equal(t, "usd", cfg.VsCurrency)
	require.Equal(t, "5 0 * * *", cfg.RefreshSpec)
	require.Equal(t, 4, cfg.RefreshParallelism)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Empty(t, cfg.Token)

	loc, err := cfg.SnapshotLocation()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/data/daily.sqlite")
	t.Setenv("ALLOWED_USERS", "1,2,3")
	t.Setenv("NEWS_FEED_URLS", "https://a.example/rss,https://b.example/atom")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SNAPSHOT_TIMEZONE", "Europe/Berlin")
	t.Setenv("PROVIDER_RATE_PER_SECOND", "0.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "/data/daily.sqlite", cfg.DBPath)
	require.Equal(t, []int64{1, 2, 3}, cfg.AllowedUsers)
	require.Equal(t, []string{"https://a.example/rss", "https://b.example/atom"}, cfg.NewsFeedURLs)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.InDelta(t, 0.5, cfg.ProviderRatePerSecond, 1e-9)

	loc, err := cfg.SnapshotLocation()
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("timezone", func(t *testing.T) {
		t.Setenv("SNAPSHOT_TIMEZONE", "Mars/Olympus")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("parallelism", func(t *testing.T) {
		t.Setenv("REFRESH_PARALLELISM", "0")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("allowed users", func(t *testing.T) {
		t.Setenv("ALLOWED_USERS", "alice")
		_, err := config.Load()
		require.Error(t, err)
	})
}
