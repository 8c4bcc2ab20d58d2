package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
)

const helpText = `ℹ️ *Commands*

/today – today's snapshot
/refresh – rebuild today's snapshot from the latest data
/assets BTC ETH – choose assets
/persona – choose investor persona
/topics news charts social fun – choose visible sections
/menu – show menu`

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	return b.withSpinner(ctx, message.Chat.ID, func() error {
		text := strings.TrimSpace(message.Text)
		command, args := splitCommand(text)

		chatID := message.Chat.ID
		userID := message.From.ID

		switch command {
		case "/start":
			return b.handleStartCommand(ctx, chatID, userID)
		case "/menu":
			return b.handleMenuCommand(ctx, chatID)
		case "/today":
			return b.handleTodayCommand(ctx, chatID, userID, false)
		case "/refresh":
			return b.handleTodayCommand(ctx, chatID, userID, true)
		case "/assets":
			return b.handleAssetsCommand(ctx, chatID, userID, args)
		case "/persona":
			return b.handlePersonaCommand(ctx, chatID, userID, args)
		case "/topics":
			return b.handleTopicsCommand(ctx, chatID, userID, args)
		default:
			return b.sendMessageWithKeyboard(ctx, chatID, helpText, b.menuKeyboard)
		}
	})
}

// splitCommand separates "/cmd@botname a b" into "/cmd" and its arguments.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	command, _, _ := strings.Cut(fields[0], "@")

	return strings.ToLower(command), fields[1:]
}
