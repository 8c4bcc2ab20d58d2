package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptodaily/internal/domain"

	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	chatID := callbackChatID(callback)
	userID := callback.From.ID

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case callbackMenu:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case callbackToday:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleTodayCommand(ctx, chatID, userID, false)
			})
		case callbackRefresh:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleTodayCommand(ctx, chatID, userID, true)
			})
		case callbackPersona:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handlePersonaCommand(ctx, chatID, userID, nil)
			})
		}

		if persona, ok := strings.CutPrefix(data, personaCallbackPrefix); ok {
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handlePersonaCommand(ctx, chatID, userID, []string{persona})
			})
		}

		if strings.HasPrefix(data, voteCallbackPrefix) {
			return b.handleVoteQuery(ctx, callback)
		}

		return nil
	})
}

func (b *Bot) handleVoteQuery(ctx context.Context, callback *models.CallbackQuery) error {
	vc, err := parseVoteCallback(callback.Data)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, err)
	}

	if _, err = b.ledger.RecordVote(ctx, vc.snapshotID, vc.section, vc.vote, nil); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.answerCallbackOrJoin(ctx, callback, "✖️ This snapshot is gone.", err)
		}
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("record vote: %w", err))
	}

	if err = b.answerCallback(ctx, callback, "✅ Vote saved."); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if err := b.answerCallback(ctx, callback, ""); err != nil {
		errs = append(errs, fmt.Errorf("answer callback query: %w", err))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(ctx context.Context, callback *models.CallbackQuery, err error) error {
	return b.answerCallbackOrJoin(ctx, callback, "❌ Failed.", err)
}

func (b *Bot) answerCallbackOrJoin(
	ctx context.Context,
	callback *models.CallbackQuery,
	text string,
	err error,
) error {
	if answerErr := b.answerCallback(ctx, callback, text); answerErr != nil {
		return errors.Join(err, fmt.Errorf("answer callback query: %w", answerErr))
	}
	return err
}
