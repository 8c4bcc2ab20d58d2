package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"cryptodaily/internal/domain"
	"cryptodaily/internal/robusthttp"

	"github.com/tidwall/gjson"
)

const DefaultCryptoPanicBaseURL = "https://cryptopanic.com/api/developer/v2"

// CryptoPanic fetches the latest posts feed. The body is passed through
// unchanged.
type CryptoPanic struct {
	client  *robusthttp.Client
	baseURL string
	apiKey  string
	log     *slog.Logger
}

func NewCryptoPanic(client *robusthttp.Client, baseURL string, apiKey string, log *slog.Logger) *CryptoPanic {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultCryptoPanicBaseURL
	}

	return &CryptoPanic{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		log:     log,
	}
}

func (c *CryptoPanic) FetchLatestNews(ctx context.Context, kindFilter string) domain.Payload {
	q := url.Values{}
	q.Set("auth_token", c.apiKey)
	if kindFilter = strings.TrimSpace(kindFilter); kindFilter != "" {
		q.Set("kind", kindFilter)
	}

	// CryptoPanic expects the trailing slash.
	body, err := c.client.Get(ctx, c.baseURL+"/posts/?"+q.Encode(), nil)
	if err == nil && (!gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject()) {
		err = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, errors.New("posts response is not an object"))
	}
	if err != nil {
		providerFailures.WithLabelValues("cryptopanic").Inc()
		c.log.WarnContext(ctx, "Failed to fetch CryptoPanic posts",
			"error", err,
			"kindFilter", kindFilter)

		return newsErrorPayload("Failed to fetch CryptoPanic posts", err)
	}

	return body
}
