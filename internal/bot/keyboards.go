package bot

import (
	"fmt"
	"strconv"
	"strings"

	"cryptodaily/internal/domain"

	"github.com/go-telegram/bot/models"
)

const (
	callbackMenu    = "menu"
	callbackToday   = "menu_today"
	callbackRefresh = "menu_refresh"
	callbackPersona = "menu_persona"

	personaCallbackPrefix = "persona_"
	voteCallbackPrefix    = "vote:"
)

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var sectionEmoji = map[domain.Section]string{
	domain.SectionMarketNews: "📰",
	domain.SectionCoinPrices: "💰",
	domain.SectionAIInsight:  "🧠",
	domain.SectionMeme:       "😂",
}

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var voteButtons = []struct {
	vote  int
	emoji string
}{
	{vote: 1, emoji: "👍"},
	{vote: 0, emoji: "😐"},
	{vote: -1, emoji: "👎"},
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func getReturnKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("⬅️ Return to menu", callbackMenu)},
	}}
}

func getMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{
			button("📊 Today", callbackToday),
			button("🔄 Refresh", callbackRefresh),
		},
		{
			button("🧑 Persona", callbackPersona),
		},
	}}
}

func getPersonaKeyboard(current domain.Persona) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, persona := range domain.Personas {
		text := string(persona)
		if persona == current {
			text = "✅ " + text
		}
		rows = append(rows, []models.InlineKeyboardButton{button(text, personaCallbackPrefix+string(persona))})
	}

	rows = append(rows, getReturnKeyboard().InlineKeyboard...)

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// getVoteKeyboard has one row per visible section; the current vote is
// marked.
func getVoteKeyboard(view *domain.SnapshotView, sections []domain.Section) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, section := range sections {
		current, voted := view.Votes[section]

		row := make([]models.InlineKeyboardButton, 0, len(voteButtons))
		for _, vb := range voteButtons {
			text := sectionEmoji[section] + " " + vb.emoji
			if voted && current == vb.vote {
				text += " ✓"
			}
			row = append(row, button(text, voteCallbackData(view.ID, section, vb.vote)))
		}

		rows = append(rows, row)
	}

	rows = append(rows, getReturnKeyboard().InlineKeyboard...)

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func voteCallbackData(snapshotID int64, section domain.Section, vote int) string {
	return fmt.Sprintf("%s%d:%s:%d", voteCallbackPrefix, snapshotID, section, vote)
}

type voteCallback struct {
	snapshotID int64
	section    domain.Section
	vote       int
}

func parseVoteCallback(data string) (voteCallback, error) {
	rest, ok := strings.CutPrefix(data, voteCallbackPrefix)
	if !ok {
		return voteCallback{}, fmt.Errorf("not a vote callback: %q", data)
	}

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return voteCallback{}, fmt.Errorf("malformed vote callback: %q", data)
	}

	snapshotID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return voteCallback{}, fmt.Errorf("parse snapshotID: %w", err)
	}

	section, err := domain.ParseSection(parts[1])
	if err != nil {
		return voteCallback{}, fmt.Errorf("parse section: %w", err)
	}

	vote, err := strconv.Atoi(parts[2])
	if err != nil {
		return voteCallback{}, fmt.Errorf("parse vote: %w", err)
	}

	return voteCallback{snapshotID: snapshotID, section: section, vote: vote}, nil
}
