package bot

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"cryptodaily/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNews = `{"results":[{"title":"ETF inflows (record)","url":"https://example.com/a"},{"title":"No link"}]}`

func testView() *domain.SnapshotView {
	return &domain.SnapshotView{
		ID:           7,
		UserID:       42,
		SnapshotDate: "2026-01-03",
		CoinPrices: domain.SectionContent{
			"bitcoin":  {ContentID: 1, Data: domain.Payload(`{"usd":97000.5}`)},
			"ethereum": {ContentID: 2, Data: domain.Payload(`{"usd":3500}`)},
		},
		MarketNews: domain.SectionContent{
			"bitcoin":  {ContentID: 3, Data: domain.Payload(testNews)},
			"ethereum": {ContentID: 3, Data: domain.Payload(testNews)},
		},
		AIInsight: domain.SectionContent{
			"bitcoin": {ContentID: 4, Data: domain.Payload(`{"summary":"Stay calm."}`)},
		},
		Meme: domain.SectionContent{
			"bitcoin": {ContentID: 5, Data: domain.Payload(`{"title":"gm frens","url":"https://i.imgur.com/x.png"}`)},
		},
		Votes: map[domain.Section]int{domain.SectionMeme: -1},
	}
}

func testBot() *Bot {
	return &Bot{tickers: map[string]string{"bitcoin": "BTC", "ethereum": "ETH"}}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantCmd  string
		wantArgs []string
	}{
		{"/today", "/today", []string{}},
		{"/Assets@crypto_daily_bot btc  eth", "/assets", []string{"btc", "eth"}},
		{"hello", "", nil},
		{"", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args := splitCommand(tt.text)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestVoteCallbackRoundTrip(t *testing.T) {
	for _, section := range domain.Sections {
		for _, vote := range []int{-1, 0, 1} {
			data := voteCallbackData(123, section, vote)
			assert.LessOrEqual(t, len(data), 64)

			vc, err := parseVoteCallback(data)
			require.NoError(t, err)
			assert.Equal(t, voteCallback{snapshotID: 123, section: section, vote: vote}, vc)
		}
	}
}

func TestParseVoteCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"menu",
		"vote:1:MEME",
		"vote:x:MEME:1",
		"vote:1:WEATHER:1",
		"vote:1:MEME:up",
	} {
		t.Run(data, func(t *testing.T) {
			_, err := parseVoteCallback(data)
			require.Error(t, err)
		})
	}

	_, err := parseVoteCallback("vote:1:WEATHER:1")
	require.ErrorIs(t, err, domain.ErrInvalidSection)
}

func TestParseTopics(t *testing.T) {
	topics, ok := parseTopics([]string{"news,", "FUN"})
	require.True(t, ok)
	assert.Equal(t, domain.TopicFlags{MarketNews: true, Fun: true}, topics)

	topics, ok = parseTopics([]string{"all"})
	require.True(t, ok)
	assert.Equal(t, domain.AllTopics, topics)

	_, ok = parseTopics([]string{"news", "weather"})
	assert.False(t, ok)
}

func TestVisibleSections(t *testing.T) {
	assert.Equal(t, []domain.Section{
		domain.SectionCoinPrices,
		domain.SectionMarketNews,
		domain.SectionAIInsight,
		domain.SectionMeme,
	}, visibleSections(domain.AllTopics))

	assert.Equal(t, []domain.Section{domain.SectionAIInsight},
		visibleSections(domain.TopicFlags{Social: true}))

	assert.Empty(t, visibleSections(domain.TopicFlags{}))
}

func TestFormatSnapshot(t *testing.T) {
	messages := testBot().formatSnapshot(testView(), domain.AllTopics)
	require.Len(t, messages, 1)

	text := messages[0]
	assert.Contains(t, text, "Daily snapshot for 2026\\-01\\-03")
	assert.Contains(t, text, "*BTC*: 97000\\.5 USD")
	assert.Contains(t, text, "*ETH*: 3500 USD")
	assert.Contains(t, text, "[ETF inflows \\(record\\)](https://example.com/a)")
	assert.Equal(t, 1, strings.Count(text, "ETF inflows"), "shared news record is listed once")
	assert.Contains(t, text, "– No link")
	assert.Contains(t, text, "*BTC*: Stay calm\\.")
	assert.Contains(t, text, "[gm frens](https://i.imgur.com/x.png)")

	assert.Less(t, strings.Index(text, "Coin prices"), strings.Index(text, "Market news"))
}

func TestFormatSnapshotHidesTopics(t *testing.T) {
	messages := testBot().formatSnapshot(testView(), domain.TopicFlags{Fun: true})
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "gm frens")
	assert.NotContains(t, messages[0], "Coin prices")
	assert.NotContains(t, messages[0], "ETF inflows")

	messages = testBot().formatSnapshot(testView(), domain.TopicFlags{})
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "All topics are hidden")
}

func TestFormatSnapshotEmptySection(t *testing.T) {
	view := testView()
	view.AIInsight = nil

	messages := testBot().formatSnapshot(view, domain.TopicFlags{Social: true})
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Nothing yet today")
}

func TestFormatSnapshotSplitsLongMessages(t *testing.T) {
	view := testView()
	view.AIInsight = domain.SectionContent{}
	for i := range 20 {
		summary, err := json.Marshal(map[string]string{"summary": strings.Repeat("x", 550)})
		require.NoError(t, err)
		view.AIInsight[fmt.Sprintf("coin-%02d", i)] = domain.SectionEntry{ContentID: int64(i), Data: summary}
	}

	messages := testBot().formatSnapshot(view, domain.TopicFlags{Charts: true, Social: true})
	require.GreaterOrEqual(t, len(messages), 3)
	assert.Contains(t, messages[0], "Coin prices")
	assert.Contains(t, messages[len(messages)-1], "\\(continue\\)")
	for _, message := range messages {
		assert.LessOrEqual(t, len(message), telegramMessageMaxLength)
	}
}

func TestGetVoteKeyboardMarksCurrentVote(t *testing.T) {
	kb := getVoteKeyboard(testView(), []domain.Section{domain.SectionCoinPrices, domain.SectionMeme})
	require.Len(t, kb.InlineKeyboard, 3)

	prices := kb.InlineKeyboard[0]
	require.Len(t, prices, 3)
	for _, b := range prices {
		assert.NotContains(t, b.Text, "✓")
	}
	assert.Equal(t, "vote:7:COIN_PRICES:1", prices[0].CallbackData)

	meme := kb.InlineKeyboard[1]
	assert.Equal(t, "😂 👎 ✓", meme[2].Text)
	assert.Equal(t, "vote:7:MEME:-1", meme[2].CallbackData)

	assert.Equal(t, callbackMenu, kb.InlineKeyboard[2][0].CallbackData)
}
