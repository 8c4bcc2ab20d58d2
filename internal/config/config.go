package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath       string     `env:"DB_PATH"        envDefault:"cryptodaily.sqlite"`
	LogLevel     slog.Level `env:"LOG_LEVEL"      envDefault:"INFO"`
	MetricsAddr  string     `env:"METRICS_ADDR"`
	Token        string     `env:"TELEGRAM_TOKEN"`
	AllowedUsers []int64    `env:"ALLOWED_USERS"`

	CoinGeckoBaseURL   string   `env:"COINGECKO_BASE_URL"`
	CoinGeckoAPIKey    string   `env:"COINGECKO_API_KEY"`
	CryptoPanicBaseURL string   `env:"CRYPTOPANIC_BASE_URL"`
	CryptoPanicAPIKey  string   `env:"CRYPTOPANIC_API_KEY"`
	NewsFeedURLs       []string `env:"NEWS_FEED_URLS"`
	MemeAPIURL         string   `env:"MEME_API_URL"`
	RedditMemeURL      string   `env:"REDDIT_MEME_URL"`
	VsCurrency         string   `env:"VS_CURRENCY"          envDefault:"usd"`

	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	HuggingFaceAPIToken string `env:"HUGGINGFACE_API_TOKEN"`
	HuggingFaceModelID  string `env:"HUGGINGFACE_MODEL_ID"`

	RefreshSpec           string  `env:"REFRESH_SPEC"             envDefault:"5 0 * * *"`
	RefreshParallelism    int     `env:"REFRESH_PARALLELISM"      envDefault:"4"`
	ProviderRatePerSecond float64 `env:"PROVIDER_RATE_PER_SECOND" envDefault:"2"`
	SnapshotTimezone      string  `env:"SNAPSHOT_TIMEZONE"        envDefault:"UTC"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if _, err = cfg.SnapshotLocation(); err != nil {
		return Config{}, err
	}
	if cfg.RefreshParallelism <= 0 {
		return Config{}, fmt.Errorf("REFRESH_PARALLELISM must be positive (got %d)", cfg.RefreshParallelism)
	}

	return cfg, nil
}

// SnapshotLocation is the zone whose calendar day keys snapshots.
func (c Config) SnapshotLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SnapshotTimezone)
	if err != nil {
		return nil, fmt.Errorf("load snapshot timezone %q: %w", c.SnapshotTimezone, err)
	}

	return loc, nil
}
