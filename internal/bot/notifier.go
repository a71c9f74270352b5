package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

const notifyTimeout = 10 * time.Second

// Notifier posts new transactions to the admin chats with approve and reject buttons.
type Notifier struct {
	Bot     *telego.Bot
	ChatIDs []int64
	Logger  *zap.Logger
}

func NewNotifier(bot *telego.Bot, chatIDs []int64, logger *zap.Logger) *Notifier {
	return &Notifier{Bot: bot, ChatIDs: chatIDs, Logger: logger}
}

func (n *Notifier) TransactionCreated(ctx context.Context, txn *models.Transaction, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Complete").WithCallbackData(statusCallback(models.StatusCompleted, txn.ID)),
			tu.InlineKeyboardButton("❌ Fail").WithCallbackData(statusCallback(models.StatusFailed, txn.ID)),
		),
	)
	text := formatAdminNotice(txn, user)

	var errs []error
	for _, chatID := range n.ChatIDs {
		msg := tu.Message(tu.ID(chatID), text).WithReplyMarkup(keyboard)
		if _, err := n.Bot.SendMessage(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		n.Logger.Warn("Admin notification partially failed",
			zap.String("transaction_id", txn.ID), zap.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}
