package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/domain"
	"cryptodaily/internal/robusthttp"

	"github.com/tidwall/gjson"
	"mvdan.cc/xurls/v2"
)

const (
	DefaultMemeAPIURL = "https://meme-api.com/gimme/cryptomemes"
	DefaultRedditURL  = "https://www.reddit.com/r/cryptomemes/top.json?limit=50&t=day"

	redditUserAgent = "cryptodaily/1.0 (daily snapshot bot)"

	MemeSourceMemeAPI  = "meme-api"
	MemeSourceReddit   = "reddit"
	MemeSourceFallback = "fallback"
)

var errNoImage = errors.New("no image found")

//nolint:gochecknoglobals // Static fallback rotation.
var fallbackMemes = []struct {
	title string
	url   string
}{
	{
		title: "HODL vibes",
		url:   fallbackSVG("%232563eb", "white", 48, "HODL vibes"),
	},
	{
		title: "Charts at 3am",
		url:   fallbackSVG("%230f172a", "%23e2e8f0", 44, "Charts at 3am"),
	},
	{
		title: "Buy the dip?",
		url:   fallbackSVG("%23f59e0b", "%230b1b3d", 44, "Buy the dip?"),
	},
	{
		title: "gm frens",
		url:   fallbackSVG("%23f8fafc", "%230f172a", 44, "gm frens"),
	},
	{
		title: "Bear to Bull",
		url:   fallbackSVG("%2316a34a", "white", 44, "Bear to Bull"),
	},
}

func fallbackSVG(background, foreground string, fontSize int, text string) string {
	return fmt.Sprintf("data:image/svg+xml;utf8,"+
		"<svg xmlns='http://www.w3.org/2000/svg' width='800' height='480'>"+
		"<rect width='100%%' height='100%%' fill='%s'/>"+
		"<text x='50%%' y='50%%' fill='%s' font-size='%d' font-family='Segoe UI, Arial' "+
		"text-anchor='middle'>%s</text></svg>",
		background, foreground, fontSize, text)
}

// MemeService finds one meme image per call: meme-api first, then the day's
// top Reddit posts, then a static picture rotated by day of year. It never
// fails.
type MemeService struct {
	client     *robusthttp.Client
	memeAPIURL string
	redditURL  string
	clock      clock.Clock
	log        *slog.Logger
}

func NewMemeService(
	client *robusthttp.Client,
	memeAPIURL string,
	redditURL string,
	clk clock.Clock,
	log *slog.Logger,
) *MemeService {
	if memeAPIURL == "" {
		memeAPIURL = DefaultMemeAPIURL
	}
	if redditURL == "" {
		redditURL = DefaultRedditURL
	}

	return &MemeService{
		client:     client,
		memeAPIURL: memeAPIURL,
		redditURL:  redditURL,
		clock:      clk,
		log:        log,
	}
}

func (s *MemeService) FetchMeme(ctx context.Context) domain.Meme {
	meme, err := s.fetchFromMemeAPI(ctx)
	if err == nil {
		return meme
	}
	providerFailures.WithLabelValues(MemeSourceMemeAPI).Inc()
	s.log.WarnContext(ctx, "Failed to fetch meme from meme-api", "error", err)

	meme, err = s.fetchFromReddit(ctx)
	if err == nil {
		return meme
	}
	providerFailures.WithLabelValues(MemeSourceReddit).Inc()
	s.log.WarnContext(ctx, "Failed to fetch meme from Reddit", "error", err)

	return s.fallback()
}

func (s *MemeService) fetchFromMemeAPI(ctx context.Context) (domain.Meme, error) {
	body, err := s.client.Get(ctx, s.memeAPIURL, nil)
	if err != nil {
		return domain.Meme{}, err
	}

	url := gjson.GetBytes(body, "url").String()
	if !isImageURL(url) {
		return domain.Meme{}, errNoImage
	}

	title := gjson.GetBytes(body, "title").String()
	if title == "" {
		title = "Meme"
	}

	return s.served(title, url, MemeSourceMemeAPI), nil
}

func (s *MemeService) fetchFromReddit(ctx context.Context) (domain.Meme, error) {
	header := http.Header{}
	header.Set("User-Agent", redditUserAgent)

	body, err := s.client.Get(ctx, s.redditURL, header)
	if err != nil {
		return domain.Meme{}, err
	}

	var (
		meme  domain.Meme
		found bool
	)

	gjson.GetBytes(body, "data.children").ForEach(func(_, child gjson.Result) bool {
		post := child.Get("data")
		if !post.Exists() {
			return true
		}

		url := redditImageURL(post)
		if url == "" {
			return true
		}

		meme = s.served(post.Get("title").String(), url, MemeSourceReddit)
		found = true

		return false
	})

	if !found {
		return domain.Meme{}, errNoImage
	}

	return meme, nil
}

func redditImageURL(post gjson.Result) string {
	if direct := post.Get("url_overridden_by_dest").String(); isImageURL(direct) {
		return direct
	}

	// Reddit HTML-escapes query separators in preview links.
	preview := strings.ReplaceAll(post.Get("preview.images.0.source.url").String(), "&amp;", "&")
	if isImageURL(preview) {
		return preview
	}

	if thumb := post.Get("thumbnail").String(); isImageURL(thumb) {
		return thumb
	}

	for _, candidate := range xurls.Strict().FindAllString(post.Get("selftext").String(), -1) {
		if isImageURL(candidate) {
			return candidate
		}
	}

	return ""
}

func (s *MemeService) fallback() domain.Meme {
	fallbacksServed.WithLabelValues(string(domain.KindMeme)).Inc()

	pick := fallbackMemes[s.clock.Now().YearDay()%len(fallbackMemes)]

	return s.served(pick.title, pick.url, MemeSourceFallback)
}

func (s *MemeService) served(title, url, source string) domain.Meme {
	return domain.Meme{
		Title:    title,
		URL:      url,
		ServedAt: s.clock.Now().UTC().Format(time.RFC3339),
		Source:   source,
	}
}

func isImageURL(url string) bool {
	if url == "" {
		return false
	}

	lower := strings.ToLower(url)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return strings.Contains(lower, "i.redd.it") || strings.Contains(lower, "i.imgur.com")
}
