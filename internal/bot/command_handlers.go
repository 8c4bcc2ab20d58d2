package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cryptodaily/internal/domain"
	"cryptodaily/internal/markdown"
)

const welcomeText = `🤖 *Welcome to Crypto Daily\!*

Once a day I collect prices, news, a meme and a short AI insight for the assets you follow\. You can:

– Get today's snapshot with /today
– Rebuild it from the latest data with /refresh
– Choose assets with /assets, e\.g\. /assets BTC ETH SOL
– Pick your investor persona with /persona
– Hide or show sections with /topics
– Vote on every section to tell me what works for you`

const failedText = "❌ Failed\\."

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var topicAliases = map[string]func(*domain.TopicFlags){
	"news":   func(t *domain.TopicFlags) { t.MarketNews = true },
	"charts": func(t *domain.TopicFlags) { t.Charts = true },
	"prices": func(t *domain.TopicFlags) { t.Charts = true },
	"social": func(t *domain.TopicFlags) { t.Social = true },
	"ai":     func(t *domain.TopicFlags) { t.Social = true },
	"fun":    func(t *domain.TopicFlags) { t.Fun = true },
	"memes":  func(t *domain.TopicFlags) { t.Fun = true },
	"all":    func(t *domain.TopicFlags) { *t = domain.AllTopics },
}

// sendFailure reports err to the chat and returns it joined with any send
// error.
func (b *Bot) sendFailure(ctx context.Context, chatID int64, text string, err error) error {
	errs := []error{err}

	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); sendErr != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64, userID int64) error {
	if err := b.users.EnsureUser(ctx, userID, b.clock.Now()); err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("ensure user: %w", err))
	}

	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

// preferences registers unknown users on the fly so every command works
// without /start.
func (b *Bot) preferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	if err := b.users.EnsureUser(ctx, userID, b.clock.Now()); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	prefs, err := b.users.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	return prefs, nil
}

func (b *Bot) handleTodayCommand(ctx context.Context, chatID int64, userID int64, refresh bool) error {
	prefs, err := b.preferences(ctx, userID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, err)
	}

	view, err := b.composer.ComposeOrGet(ctx, userID, refresh)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("compose snapshot: %w", err))
	}

	messages := b.formatSnapshot(view, prefs.Topics)
	keyboard := getVoteKeyboard(view, visibleSections(prefs.Topics))

	var errs []error
	for i, message := range messages {
		kb := b.returnKeyboard
		if i == len(messages)-1 {
			kb = keyboard
		}

		if err = b.sendMessageWithKeyboard(ctx, chatID, message, kb); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleAssetsCommand(ctx context.Context, chatID int64, userID int64, args []string) error {
	prefs, err := b.preferences(ctx, userID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, err)
	}

	supported := markdown.EscapeV2(strings.Join(b.assets.SupportedTickers(), ", "))

	if len(args) == 0 {
		current := "all supported"
		if len(prefs.Assets) > 0 {
			current = strings.Join(prefs.Assets, ", ")
		}

		return b.sendMessageWithKeyboard(ctx, chatID, fmt.Sprintf(
			"🪙 *Assets*\n\nYou follow: %s\\.\nSupported: %s\\.\n\nSend /assets BTC ETH to change\\.",
			markdown.EscapeV2(current),
			supported,
		), b.returnKeyboard)
	}

	var known, unknown []string
	for _, arg := range args {
		ticker := strings.ToUpper(strings.Trim(arg, ", "))
		if ticker == "" || slices.Contains(known, ticker) {
			continue
		}

		if _, ok := b.assets.ToCoinGeckoID(ticker); ok {
			known = append(known, ticker)
		} else {
			unknown = append(unknown, ticker)
		}
	}

	if len(known) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, fmt.Sprintf(
			"✖️ None of these assets are supported\\.\nSupported: %s\\.", supported,
		), b.returnKeyboard)
	}

	prefs.Assets = known
	if err = b.users.SavePreferences(ctx, prefs); err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("save preferences: %w", err))
	}

	text := fmt.Sprintf("✅ Following %s\\.", markdown.EscapeV2(strings.Join(known, ", ")))
	if len(unknown) > 0 {
		text += fmt.Sprintf("\nSkipped unsupported: %s\\.", markdown.EscapeV2(strings.Join(unknown, ", ")))
	}
	text += "\n\nUse /refresh to rebuild today's snapshot\\."

	return b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard)
}

func (b *Bot) handlePersonaCommand(ctx context.Context, chatID int64, userID int64, args []string) error {
	prefs, err := b.preferences(ctx, userID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, err)
	}

	if len(args) > 0 {
		return b.setPersona(ctx, chatID, prefs, domain.Persona(strings.ToUpper(args[0])))
	}

	current := "not set"
	if prefs.Persona != "" {
		current = string(prefs.Persona)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, fmt.Sprintf(
		"🧑 *Persona*\n\nCurrent persona is %s\\.\n\nChoose another one below:",
		markdown.EscapeV2(current),
	), getPersonaKeyboard(prefs.Persona))
}

func (b *Bot) setPersona(
	ctx context.Context,
	chatID int64,
	prefs *domain.UserPreferences,
	persona domain.Persona,
) error {
	if !slices.Contains(domain.Personas, persona) {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Unknown persona\\.", getPersonaKeyboard(prefs.Persona))
	}

	prefs.Persona = persona
	if err := b.users.SavePreferences(ctx, prefs); err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("save preferences: %w", err))
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		fmt.Sprintf("✅ Persona is %s\\.", markdown.EscapeV2(string(persona))),
		b.returnKeyboard)
}

func (b *Bot) handleTopicsCommand(ctx context.Context, chatID int64, userID int64, args []string) error {
	prefs, err := b.preferences(ctx, userID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, err)
	}

	if len(args) > 0 {
		topics, ok := parseTopics(args)
		if !ok {
			return b.sendMessageWithKeyboard(ctx, chatID,
				"✖️ Unknown topic\\. Use news, charts, social, fun or all\\.",
				b.returnKeyboard)
		}

		prefs.Topics = topics
		if err = b.users.SavePreferences(ctx, prefs); err != nil {
			return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("save preferences: %w", err))
		}
	}

	var shown []string
	for _, section := range visibleSections(prefs.Topics) {
		shown = append(shown, sectionTitle(section))
	}
	if len(shown) == 0 {
		shown = []string{"nothing"}
	}

	return b.sendMessageWithKeyboard(ctx, chatID, fmt.Sprintf(
		"🗂 *Topics*\n\nShowing: %s\\.\n\nSend /topics news charts social fun to change\\.",
		strings.Join(shown, ", "),
	), b.returnKeyboard)
}

// parseTopics turns the listed topic names into flags; unlisted topics are
// off.
func parseTopics(args []string) (domain.TopicFlags, bool) {
	var topics domain.TopicFlags

	for _, arg := range args {
		set, ok := topicAliases[strings.ToLower(strings.Trim(arg, ", "))]
		if !ok {
			return domain.TopicFlags{}, false
		}
		set(&topics)
	}

	return topics, true
}
