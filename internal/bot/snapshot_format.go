package bot

import (
	"fmt"
	"slices"
	"strings"

	"cryptodaily/internal/domain"
	"cryptodaily/internal/markdown"

	"github.com/tidwall/gjson"
)

const (
	telegramMessageMaxLength = 4096
	newsItemsPerRecord       = 5
	insightMaxRunes          = 600
)

// visibleSections maps topic flags to sections, in display order.
func visibleSections(topics domain.TopicFlags) []domain.Section {
	var sections []domain.Section

	if topics.Charts {
		sections = append(sections, domain.SectionCoinPrices)
	}
	if topics.MarketNews {
		sections = append(sections, domain.SectionMarketNews)
	}
	if topics.Social {
		sections = append(sections, domain.SectionAIInsight)
	}
	if topics.Fun {
		sections = append(sections, domain.SectionMeme)
	}

	return sections
}

// formatSnapshot renders the view as MarkdownV2 messages that each fit in
// one Telegram message. Sections hidden by topics are left out.
func (b *Bot) formatSnapshot(view *domain.SnapshotView, topics domain.TopicFlags) []string {
	header := fmt.Sprintf("📊 *Daily snapshot for %s*\n\n", markdown.EscapeV2(view.SnapshotDate))
	continueHeader := fmt.Sprintf("📊 *Daily snapshot for %s \\(continue\\)*\n\n", markdown.EscapeV2(view.SnapshotDate))

	var blocks []string
	for _, section := range visibleSections(topics) {
		blocks = append(blocks, b.formatSection(view, section))
	}

	if len(blocks) == 0 {
		return []string{header + "_All topics are hidden\\. Use /topics to choose some\\._"}
	}

	var (
		messages []string
		current  strings.Builder
		hasBody  bool
	)

	current.WriteString(header)

	// Lines are never split, so entities stay balanced.
	for _, line := range strings.SplitAfter(strings.Join(blocks, ""), "\n") {
		if line == "" {
			continue
		}

		if hasBody && current.Len()+len(line) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(continueHeader)
		}

		current.WriteString(line)
		hasBody = true
	}

	return append(messages, current.String())
}

func (b *Bot) formatSection(view *domain.SnapshotView, section domain.Section) string {
	var body string

	switch section {
	case domain.SectionCoinPrices:
		body = b.formatPrices(view.CoinPrices)
	case domain.SectionMarketNews:
		body = formatNews(view.MarketNews)
	case domain.SectionAIInsight:
		body = b.formatInsights(view.AIInsight)
	case domain.SectionMeme:
		body = formatMeme(view.Meme)
	}

	if body == "" {
		body = "_Nothing yet today\\._\n"
	}

	return fmt.Sprintf("%s *%s*\n%s\n", sectionEmoji[section], sectionTitle(section), body)
}

func sectionTitle(section domain.Section) string {
	switch section {
	case domain.SectionCoinPrices:
		return "Coin prices"
	case domain.SectionMarketNews:
		return "Market news"
	case domain.SectionAIInsight:
		return "AI insight"
	case domain.SectionMeme:
		return "Meme of the day"
	default:
		return markdown.EscapeV2(string(section))
	}
}

func (b *Bot) ticker(assetID string) string {
	if ticker, ok := b.tickers[assetID]; ok {
		return ticker
	}
	return assetID
}

func sortedAssets(content domain.SectionContent) []string {
	assets := make([]string, 0, len(content))
	for asset := range content {
		assets = append(assets, asset)
	}
	slices.Sort(assets)

	return assets
}

func (b *Bot) formatPrices(content domain.SectionContent) string {
	var sb strings.Builder

	for _, asset := range sortedAssets(content) {
		var quotes []string
		gjson.ParseBytes(content[asset].Data).ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				quotes = append(quotes, value.Raw+" "+strings.ToUpper(key.String()))
			}
			return true
		})
		if len(quotes) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "– %s: %s\n", markdown.Bold(b.ticker(asset)), markdown.EscapeV2(strings.Join(quotes, ", ")))
	}

	return sb.String()
}

// formatNews lists each distinct news record once, since assets often
// share one.
func formatNews(content domain.SectionContent) string {
	var (
		sb   strings.Builder
		seen = make(map[int64]struct{})
	)

	for _, asset := range sortedAssets(content) {
		entry := content[asset]
		if _, dup := seen[entry.ContentID]; dup {
			continue
		}
		seen[entry.ContentID] = struct{}{}

		doc := gjson.ParseBytes(entry.Data)
		if doc.Get("error").Exists() {
			sb.WriteString("_News could not be read\\._\n")
			continue
		}

		count := 0
		doc.Get("results").ForEach(func(_, item gjson.Result) bool {
			title := strings.TrimSpace(item.Get("title").String())
			if title == "" {
				return true
			}

			url := item.Get("url").String()
			if url == "" {
				url = item.Get("original_url").String()
			}

			if strings.HasPrefix(url, "http") {
				fmt.Fprintf(&sb, "– %s\n", markdown.Link(title, url))
			} else {
				fmt.Fprintf(&sb, "– %s\n", markdown.EscapeV2(title))
			}

			count++
			return count < newsItemsPerRecord
		})
	}

	return sb.String()
}

func (b *Bot) formatInsights(content domain.SectionContent) string {
	var sb strings.Builder

	for _, asset := range sortedAssets(content) {
		summary := strings.TrimSpace(gjson.GetBytes(content[asset].Data, "summary").String())
		if summary == "" {
			continue
		}

		if runes := []rune(summary); len(runes) > insightMaxRunes {
			summary = string(runes[:insightMaxRunes]) + "..."
		}

		fmt.Fprintf(&sb, "– %s: %s\n", markdown.Bold(b.ticker(asset)), markdown.EscapeV2(summary))
	}

	return sb.String()
}

// formatMeme shows a single meme; every asset normally carries the same one.
func formatMeme(content domain.SectionContent) string {
	for _, asset := range sortedAssets(content) {
		data := content[asset].Data

		title := strings.TrimSpace(gjson.GetBytes(data, "title").String())
		if title == "" {
			title = "Meme"
		}

		url := gjson.GetBytes(data, "url").String()
		if strings.HasPrefix(url, "http") {
			return markdown.Link(title, url) + "\n"
		}

		return markdown.Italic(title) + "\n"
	}

	return ""
}
