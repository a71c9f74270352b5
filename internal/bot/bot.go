package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
)

// SweepControl lets administrators trigger and inspect accrual sweeps.
type SweepControl interface {
	RunOnce(ctx context.Context) (ledger.SweepReport, bool, error)
	LastReport(ctx context.Context) (*ledger.SweepReport, error)
}

type Bot struct {
	Instance *telego.Bot
	Ledger   *ledger.Service
	Sweeps   SweepControl
	Logger   *zap.Logger
}

func NewBot(token string, svc *ledger.Service, sweeps SweepControl, logger *zap.Logger) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance: tgBot,
		Ledger:   svc,
		Sweeps:   sweeps,
		Logger:   logger,
	}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.userCommand(b.handleBalance), th.CommandEqual("balance"))
	handler.Handle(b.userCommand(b.handlePlans), th.CommandEqual("plans"))
	handler.Handle(b.userCommand(b.handleInvest), th.CommandEqual("invest"))
	handler.Handle(b.userCommand(b.handleDeposit), th.CommandEqual("deposit"))
	handler.Handle(b.userCommand(b.handleWithdraw), th.CommandEqual("withdraw"))
	handler.Handle(b.userCommand(b.handleWallet), th.CommandEqual("wallet"))
	handler.Handle(b.userCommand(b.handleHistory), th.CommandEqual("history"))
	handler.Handle(b.userCommand(b.handleReferral), th.CommandEqual("referral"))

	handler.Handle(b.adminCommand(b.handleSetStatus), th.CommandEqual("setstatus"))
	handler.Handle(b.adminCommand(b.handleSetPlan), th.CommandEqual("plan"))
	handler.Handle(b.adminCommand(b.handleDeletePlan), th.CommandEqual("delplan"))
	handler.Handle(b.adminCommand(b.handleStats), th.CommandEqual("stats"))
	handler.Handle(b.adminCommand(b.handlePending), th.CommandEqual("pending"))
	handler.Handle(b.adminCommand(b.handleUsers), th.CommandEqual("users"))
	handler.Handle(b.adminCommand(b.handleSweep), th.CommandEqual("sweep"))
	handler.Handle(b.adminCommand(b.handleSweepStatus), th.CommandEqual("sweepstatus"))

	handler.Handle(b.handleStatusCallback, th.CallbackDataPrefix("txn:"))
	handler.Handle(b.handleMenuCallback, th.CallbackDataPrefix("menu:"))
	handler.Handle(b.userCommand(b.handleHelp), th.AnyCommand())

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	b.Logger.Info("Telegram bot started")
	handler.Start()
	return nil
}

// commandHandler handles a parsed command from a registered user.
type commandHandler func(ctx *th.Context, chatID int64, user *models.User, cmd Command) error

func (b *Bot) userCommand(h commandHandler) th.Handler {
	return func(ctx *th.Context, update telego.Update) error {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return nil
		}
		cmd, ok := ParseCommand(msg.Text)
		if !ok {
			return nil
		}
		user, _, err := b.Ledger.RegisterUser(ctx.Context(), msg.From.ID, msg.From.Username, "")
		if err != nil {
			b.Logger.Error("Failed to load user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
			b.reply(ctx, msg.Chat.ID, userMessage(err))
			return nil
		}
		return h(ctx, msg.Chat.ID, user, cmd)
	}
}

func (b *Bot) adminCommand(h commandHandler) th.Handler {
	return b.userCommand(func(ctx *th.Context, chatID int64, user *models.User, cmd Command) error {
		if !b.Ledger.IsAdmin(user) {
			b.reply(ctx, chatID, "⛔ Admin only.")
			return nil
		}
		return h(ctx, chatID, user, cmd)
	})
}

func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text)); err != nil {
		b.Logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// userMessage turns an operation error into text safe to show in chat.
func userMessage(err error) string {
	var input inputError
	switch {
	case errors.As(err, &input):
		return input.msg
	case errors.Is(err, ledger.ErrUnknownPlan):
		return "❌ There is no plan with that amount. See /plans."
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "❌ Insufficient balance."
	case errors.Is(err, ledger.ErrBelowMinimumWithdrawal):
		return "❌ " + err.Error()
	case errors.Is(err, ledger.ErrInvalidAddress):
		return "❌ Invalid wallet address for this network."
	case errors.Is(err, ledger.ErrMissingTxID):
		return "❌ Please provide the transaction hash (TXID) of your transfer."
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "❌ Amount must be positive."
	case errors.Is(err, ledger.ErrInvalidStatus):
		return "❌ Status must be pending, completed or failed."
	case errors.Is(err, ledger.ErrNotFound):
		return "❌ Not found."
	case errors.Is(err, ledger.ErrConflict):
		return "⚠️ Busy right now, please retry."
	}
	return "❌ Something went wrong, please try again later."
}
