package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"cryptodaily/internal/clock"
	"cryptodaily/internal/domain"
	"cryptodaily/internal/ratelimiter"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 60 * time.Second

type Users interface {
	EnsureUser(ctx context.Context, userID int64, now time.Time) error
	GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs *domain.UserPreferences) error
}

type Composer interface {
	ComposeOrGet(ctx context.Context, userID int64, forceRefresh bool) (*domain.SnapshotView, error)
}

type Ledger interface {
	RecordVote(
		ctx context.Context,
		snapshotID int64,
		section domain.Section,
		vote int,
		contentID *int64,
	) (*domain.FeedbackEntry, error)
}

type AssetResolver interface {
	ToCoinGeckoID(ticker string) (string, bool)
	SupportedTickers() []string
}

type Deps struct {
	Users    Users
	Composer Composer
	Ledger   Ledger
	Assets   AssetResolver
	Clock    clock.Clock
}

type Bot struct {
	api            *bot.Bot
	rateLimiter    *ratelimiter.RateLimiter
	users          Users
	composer       Composer
	ledger         Ledger
	assets         AssetResolver
	tickers        map[string]string
	clock          clock.Clock
	allowedUsers   []int64
	menuKeyboard   *models.InlineKeyboardMarkup
	returnKeyboard *models.InlineKeyboardMarkup
	log            *slog.Logger
}

// New connects to the Bot API. opts are appended after the bot's own
// options, so tests can point it at a fake server.
func New(
	token string,
	deps Deps,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...bot.Option,
) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}

	tickers := make(map[string]string)
	for _, ticker := range deps.Assets.SupportedTickers() {
		if id, ok := deps.Assets.ToCoinGeckoID(ticker); ok {
			tickers[id] = ticker
		}
	}

	b := &Bot{
		users:          deps.Users,
		composer:       deps.Composer,
		ledger:         deps.Ledger,
		assets:         deps.Assets,
		tickers:        tickers,
		clock:          deps.Clock,
		allowedUsers:   allowedUsers,
		menuKeyboard:   getMenuKeyboard(),
		returnKeyboard: getReturnKeyboard(),
		log:            log,
	}

	api, err := bot.New(token, append([]bot.Option{bot.WithDefaultHandler(b.handleUpdate)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)

	return b, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		message := update.Message
		userID := message.From.ID

		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", callbackChatID(callback),
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", callbackChatID(callback),
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

// callbackChatID falls back to the sender, which is the chat in private
// conversations.
func callbackChatID(callback *models.CallbackQuery) int64 {
	switch {
	case callback.Message.Message != nil:
		return callback.Message.Message.Chat.ID
	case callback.Message.InaccessibleMessage != nil:
		return callback.Message.InaccessibleMessage.Chat.ID
	default:
		return callback.From.ID
	}
}
