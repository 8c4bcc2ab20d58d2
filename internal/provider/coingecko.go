package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cryptodaily/internal/domain"
	"cryptodaily/internal/robusthttp"

	"github.com/tidwall/gjson"
)

const DefaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko fetches spot prices from the /simple/price endpoint.
type CoinGecko struct {
	client  *robusthttp.Client
	baseURL string
	apiKey  string
}

func NewCoinGecko(client *robusthttp.Client, baseURL string, apiKey string) *CoinGecko {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}

	return &CoinGecko{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// FetchPrices returns one payload per asset id present in the response,
// e.g. {"usd": 64000.5}.
func (c *CoinGecko) FetchPrices(
	ctx context.Context,
	assetIDs []string,
	vsCurrency string,
) (map[string]domain.Payload, error) {
	if len(assetIDs) == 0 {
		return map[string]domain.Payload{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(assetIDs, ","))
	q.Set("vs_currencies", vsCurrency)
	if c.apiKey != "" {
		q.Set("x_cg_demo_api_key", c.apiKey)
	}

	body, err := c.client.Get(ctx, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		providerFailures.WithLabelValues("coingecko").Inc()
		return nil, fmt.Errorf("fetch simple prices: %w", err)
	}

	doc := gjson.ParseBytes(body)
	if !gjson.ValidBytes(body) || !doc.IsObject() {
		providerFailures.WithLabelValues("coingecko").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, errors.New("simple price response is not an object"))
	}

	prices := make(map[string]domain.Payload, len(assetIDs))
	doc.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() {
			prices[key.String()] = domain.Payload(value.Raw)
		}
		return true
	})

	return prices, nil
}
