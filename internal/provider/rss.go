package provider

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"cryptodaily/internal/domain"
	"cryptodaily/internal/robusthttp"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	rssMaxItems          = 20
	rssDescriptionMaxLen = 280
)

//nolint:gochecknoglobals // Defaults meant to be immutable.
var DefaultNewsFeedURLs = []string{
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://cointelegraph.com/rss",
}

type rssPost struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt string    `json:"published_at"`
	Description string    `json:"description,omitempty"`
	Source      rssSource `json:"source"`

	published time.Time
}

type rssSource struct {
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// RSSNews turns RSS/Atom/JSON feeds into a CryptoPanic-shaped document
// ({"source":"rss","results":[...]}) so consumers need not care where the
// news came from.
type RSSNews struct {
	client   *robusthttp.Client
	parser   *gofeed.Parser
	feedURLs []string
	log      *slog.Logger
}

func NewRSSNews(client *robusthttp.Client, feedURLs []string, log *slog.Logger) *RSSNews {
	return &RSSNews{
		client:   client,
		parser:   gofeed.NewParser(),
		feedURLs: feedURLs,
		log:      log,
	}
}

// FetchLatestNews ignores kindFilter; feeds carry no CryptoPanic kinds.
func (r *RSSNews) FetchLatestNews(ctx context.Context, _ string) domain.Payload {
	var (
		posts []rssPost
		errs  []error
	)

	for _, feedURL := range r.feedURLs {
		feedPosts, err := r.fetchFeed(ctx, feedURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch feed (URL = %s): %w", feedURL, err))
			continue
		}

		posts = append(posts, feedPosts...)
	}

	if len(posts) == 0 {
		providerFailures.WithLabelValues("rss").Inc()
		if len(errs) == 0 {
			errs = append(errs, errors.New("feeds have no items"))
		}

		return newsErrorPayload("Failed to fetch RSS news", errors.Join(errs...))
	}

	if len(errs) > 0 {
		r.log.WarnContext(ctx, "Some news feeds failed",
			"error", errors.Join(errs...),
			"postCount", len(posts))
	}

	slices.SortStableFunc(posts, func(a, b rssPost) int {
		return cmp.Compare(b.published.UnixNano(), a.published.UnixNano())
	})
	if len(posts) > rssMaxItems {
		posts = posts[:rssMaxItems]
	}

	raw, err := json.Marshal(map[string]any{
		"source":  "rss",
		"count":   len(posts),
		"results": posts,
	})
	if err != nil {
		return newsErrorPayload("Failed to encode RSS news", err)
	}

	return raw
}

func (r *RSSNews) fetchFeed(ctx context.Context, feedURL string) ([]rssPost, error) {
	body, err := r.client.Get(ctx, feedURL, nil)
	if err != nil {
		return nil, err
	}

	parsed, err := r.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := rssSource{Title: strings.TrimSpace(parsed.Title)}
	if u, parseErr := url.Parse(feedURL); parseErr == nil {
		source.Domain = strings.TrimPrefix(u.Hostname(), "www.")
	}
	if source.Title == "" {
		source.Title = source.Domain
	}

	posts := make([]rssPost, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)
		if link == "" || title == "" {
			continue
		}

		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			published = item.UpdatedParsed.UTC()
		}

		post := rssPost{
			Title:       title,
			URL:         link,
			Description: htmlToText(item.Description, rssDescriptionMaxLen),
			Source:      source,
			published:   published,
		}
		if !published.IsZero() {
			post.PublishedAt = published.Format(time.RFC3339)
		}

		posts = append(posts, post)
	}

	return posts, nil
}

// htmlToText flattens an HTML fragment to collapsed plain text of at most
// maxRunes runes.
func htmlToText(fragment string, maxRunes int) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	text := fragment
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment)); err == nil {
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
