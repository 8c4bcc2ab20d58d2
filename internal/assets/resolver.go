package assets

import "strings"

type listing struct {
	ticker      string
	coinGeckoID string
}

//nolint:gochecknoglobals // Curated listing meant to be immutable.
var supported = []listing{
	{ticker: "BTC", coinGeckoID: "bitcoin"},
	{ticker: "ETH", coinGeckoID: "ethereum"},
	{ticker: "USDT", coinGeckoID: "tether"},
	{ticker: "USDC", coinGeckoID: "usd-coin"},
	{ticker: "BNB", coinGeckoID: "binancecoin"},
	{ticker: "XRP", coinGeckoID: "ripple"},
	{ticker: "SOL", coinGeckoID: "solana"},
	{ticker: "DOT", coinGeckoID: "polkadot"},
	{ticker: "ADA", coinGeckoID: "cardano"},
	{ticker: "DOGE", coinGeckoID: "dogecoin"},
}

// Resolver maps user-facing tickers to CoinGecko asset ids.
type Resolver struct {
	listings []listing
	byTicker map[string]string
}

func NewResolver() *Resolver {
	return newResolver(supported)
}

// NewResolverWith builds a resolver over a custom ticker → id table,
// preserving the order of tickers.
func NewResolverWith(tickers []string, ids map[string]string) *Resolver {
	listings := make([]listing, 0, len(tickers))
	for _, ticker := range tickers {
		listings = append(listings, listing{ticker: ticker, coinGeckoID: ids[ticker]})
	}

	return newResolver(listings)
}

func newResolver(listings []listing) *Resolver {
	byTicker := make(map[string]string, len(listings))
	for _, l := range listings {
		if l.coinGeckoID == "" {
			continue
		}
		byTicker[strings.ToUpper(l.ticker)] = l.coinGeckoID
	}

	return &Resolver{listings: listings, byTicker: byTicker}
}

// ToCoinGeckoID resolves a ticker case-insensitively. The second result is
// false for unknown tickers.
func (r *Resolver) ToCoinGeckoID(ticker string) (string, bool) {
	id, ok := r.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	return id, ok
}

func (r *Resolver) SupportedTickers() []string {
	tickers := make([]string, 0, len(r.listings))
	for _, l := range r.listings {
		tickers = append(tickers, l.ticker)
	}

	return tickers
}

func (r *Resolver) SupportedIDs() []string {
	ids := make([]string, 0, len(r.listings))
	for _, l := range r.listings {
		if id, ok := r.ToCoinGeckoID(l.ticker); ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// ResolveAll maps tickers to ids, dropping unknown tickers and duplicates.
func (r *Resolver) ResolveAll(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	var ids []string

	for _, ticker := range tickers {
		id, ok := r.ToCoinGeckoID(ticker)
		if !ok {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}
