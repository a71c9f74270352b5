package bot

import (
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

func (b *Bot) handleSetStatus(ctx *th.Context, chatID int64, _ *models.User, cmd Command) error {
	if len(cmd.Args) != 2 {
		b.reply(ctx, chatID, "Usage: /setstatus <transaction id> <pending|completed|failed>")
		return nil
	}
	status, ok := models.ParseTransactionStatus(cmd.Args[1])
	if !ok {
		b.reply(ctx, chatID, "❌ Status must be pending, completed or failed.")
		return nil
	}
	b.applyStatus(ctx, chatID, cmd.Args[0], status)
	return nil
}

// applyStatus moves a transaction and tells both the admin and the owner.
func (b *Bot) applyStatus(ctx *th.Context, chatID int64, id string, status models.TransactionStatus) {
	txn, err := b.Ledger.SetTransactionStatus(ctx.Context(), id, status)
	if err != nil {
		b.Logger.Warn("Failed to set transaction status",
			zap.String("transaction_id", id), zap.String("status", string(status)), zap.Error(err))
		b.reply(ctx, chatID, userMessage(err))
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf("✅ %s is now %s.", txn.ID, txn.Status))

	owner, err := b.Ledger.GetUser(ctx.Context(), txn.UserID)
	if err != nil {
		b.Logger.Warn("Failed to load transaction owner", zap.Uint("user_id", txn.UserID), zap.Error(err))
		return
	}
	b.reply(ctx, owner.TelegramID, fmt.Sprintf("Your %s of $%s is now %s.\nBalance: $%s",
		txn.Kind, txn.Amount.String(), txn.Status, owner.Balance.String()))
}

func (b *Bot) handleStatusCallback(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	admin, err := b.Ledger.GetUserByTelegramID(ctx.Context(), callback.From.ID)
	if err != nil || !b.Ledger.IsAdmin(admin) {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).WithText("Admin only"))
		return nil
	}

	id, status, err := ParseStatusCallback(callback.Data)
	if err != nil {
		b.Logger.Warn("Bad status callback", zap.String("data", callback.Data), zap.Error(err))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).WithText("Unknown action"))
		return nil
	}

	// every admin chat gets the same buttons
	current, err := b.Ledger.GetTransaction(ctx.Context(), id)
	if err != nil {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).WithText("Transaction not found"))
		return nil
	}
	if current.Status == status {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).WithText("Already "+string(status)))
		return nil
	}

	b.applyStatus(ctx, callback.From.ID, id, status)
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).WithText(string(status)))
	return nil
}

func (b *Bot) handleSetPlan(ctx *th.Context, chatID int64, _ *models.User, cmd Command) error {
	if len(cmd.Args) != 2 {
		b.reply(ctx, chatID, "Usage: /plan <amount> <daily earning>")
		return nil
	}
	amount, err := parseAmount(cmd.Args[0])
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	rate, err := parseAmount(cmd.Args[1])
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}

	plan, err := b.Ledger.UpsertPlan(ctx.Context(), amount, rate)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Plan #%d: $%s → $%s/day", plan.ID, plan.Amount.String(), plan.DailyEarningRate.String()))
	return nil
}

func (b *Bot) handleDeletePlan(ctx *th.Context, chatID int64, _ *models.User, cmd Command) error {
	if len(cmd.Args) != 1 {
		b.reply(ctx, chatID, "Usage: /delplan <plan id>")
		return nil
	}
	id, err := strconv.ParseUint(cmd.Args[0], 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "❌ Plan id must be a number.")
		return nil
	}
	if err := b.Ledger.DeletePlan(ctx.Context(), uint(id)); err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("🗑 Plan #%d deleted. Open positions keep their rate.", id))
	return nil
}

func (b *Bot) handleStats(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	stats, err := b.Ledger.Stats(ctx.Context())
	if err != nil {
		b.Logger.Error("Failed to load stats", zap.Error(err))
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("📈 Stats\n\nUsers: %d\nCompleted deposits: $%s\nCompleted withdrawals: $%s",
		stats.Users, stats.TotalDeposits.String(), stats.TotalWithdrawals.String()))
	return nil
}

func (b *Bot) handlePending(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	pending := models.StatusPending
	txns, err := b.Ledger.ListAllTransactions(ctx.Context(), &pending, 20)
	if err != nil {
		b.Logger.Error("Failed to list pending transactions", zap.Error(err))
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, formatTransactions("🕐 Pending transactions:", txns))
	return nil
}

func (b *Bot) handleSweep(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	report, ran, err := b.Sweeps.RunOnce(ctx.Context())
	switch {
	case err != nil:
		b.Logger.Error("Manual sweep failed", zap.Error(err))
		b.reply(ctx, chatID, "❌ Sweep failed: "+err.Error())
	case !ran:
		b.reply(ctx, chatID, "⏳ A sweep is already running.")
	default:
		b.reply(ctx, chatID, formatReport(&report))
	}
	return nil
}

func (b *Bot) handleSweepStatus(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	report, err := b.Sweeps.LastReport(ctx.Context())
	if err != nil {
		b.Logger.Warn("Failed to load sweep report", zap.Error(err))
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, formatReport(report))
	return nil
}

func (b *Bot) handleUsers(ctx *th.Context, chatID int64, _ *models.User, cmd Command) error {
	// a full list does not fit into one Telegram message
	limit := 30
	if len(cmd.Args) == 1 {
		n, err := strconv.Atoi(cmd.Args[0])
		if err != nil || n <= 0 {
			b.reply(ctx, chatID, "Usage: /users [limit]")
			return nil
		}
		limit = n
	}

	users, err := b.Ledger.ListUsers(ctx.Context(), limit)
	if err != nil {
		b.Logger.Error("Failed to list users", zap.Error(err))
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, formatUsers(users))
	return nil
}
