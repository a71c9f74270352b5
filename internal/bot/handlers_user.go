package bot

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

const helpText = "Commands:\n" +
	"/balance – balance and earnings\n" +
	"/plans – investment plans\n" +
	"/invest <amount> – open a position\n" +
	"/deposit <amount> <TRC20|BEP20> <address> <txid>\n" +
	"/withdraw <amount> <TRC20|BEP20> [address]\n" +
	"/wallet <TRC20|BEP20> <address> – save payout address\n" +
	"/history – recent transactions\n" +
	"/referral – your referral code"

func mainMenu() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("👤 Balance").WithCallbackData("menu:balance"),
			tu.InlineKeyboardButton("📊 Plans").WithCallbackData("menu:plans"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📜 History").WithCallbackData("menu:history"),
			tu.InlineKeyboardButton("🤝 Referral").WithCallbackData("menu:referral"),
		),
	)
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message == nil || message.From == nil {
		return nil
	}

	cmd, _ := ParseCommand(message.Text)
	code := ""
	if len(cmd.Args) > 0 {
		code = cmd.Args[0]
	}

	user, created, err := b.Ledger.RegisterUser(ctx.Context(), message.From.ID, message.From.Username, code)
	if err != nil {
		b.Logger.Error("Failed to register user", zap.Int64("telegram_id", message.From.ID), zap.Error(err))
		b.reply(ctx, message.Chat.ID, userMessage(err))
		return nil
	}
	if created && user.ReferrerID != nil {
		b.Logger.Info("User joined by referral", zap.Uint("user_id", user.ID), zap.Uint("referrer_id", *user.ReferrerID))
	}

	text := fmt.Sprintf("Hi, %s! 👋\n\nYour referral code: %s\n\n%s", message.From.FirstName, user.ReferralCode, helpText)
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text).WithReplyMarkup(mainMenu()))
	return nil
}

func (b *Bot) handleHelp(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	b.reply(ctx, chatID, helpText)
	return nil
}

func (b *Bot) handleBalance(ctx *th.Context, chatID int64, user *models.User, _ Command) error {
	b.reply(ctx, chatID, b.balanceText(ctx, user))
	return nil
}

func (b *Bot) balanceText(ctx *th.Context, user *models.User) string {
	snap, err := b.Ledger.GetUserSnapshot(ctx.Context(), user.ID)
	if err != nil {
		b.Logger.Error("Failed to load snapshot", zap.Uint("user_id", user.ID), zap.Error(err))
		return userMessage(err)
	}
	return formatSnapshot(snap)
}

func (b *Bot) handlePlans(ctx *th.Context, chatID int64, _ *models.User, _ Command) error {
	b.reply(ctx, chatID, b.plansText(ctx))
	return nil
}

func (b *Bot) plansText(ctx *th.Context) string {
	plans, err := b.Ledger.ListPlans(ctx.Context())
	if err != nil {
		b.Logger.Error("Failed to list plans", zap.Error(err))
		return userMessage(err)
	}
	return formatPlans(plans)
}

func (b *Bot) handleInvest(ctx *th.Context, chatID int64, user *models.User, cmd Command) error {
	if len(cmd.Args) != 1 {
		b.reply(ctx, chatID, "Usage: /invest <amount>")
		return nil
	}
	amount, err := parseAmount(cmd.Args[0])
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}

	pos, err := b.Ledger.OpenPosition(ctx.Context(), user.ID, amount)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Invested $%s. You earn $%s per day, credited hourly.",
		pos.Principal.String(), pos.DailyEarningRate.String()))
	return nil
}

func (b *Bot) handleDeposit(ctx *th.Context, chatID int64, user *models.User, cmd Command) error {
	args, err := ParseDeposit(cmd.Args)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}

	txn, err := b.Ledger.CreateDeposit(ctx.Context(), user.ID, args.Amount, args.Network, args.Address, args.TxID)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("🕐 Deposit of $%s submitted for verification.\nID: %s", txn.Amount.String(), txn.ID))
	return nil
}

func (b *Bot) handleWithdraw(ctx *th.Context, chatID int64, user *models.User, cmd Command) error {
	args, err := ParseWithdraw(cmd.Args)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}

	txn, err := b.Ledger.CreateWithdraw(ctx.Context(), user.ID, args.Amount, args.Network, args.Address)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("🕐 Withdrawal of $%s to %s requested. The amount is reserved until it is processed.\nID: %s",
		txn.Amount.String(), txn.WalletAddress, txn.ID))
	return nil
}

func (b *Bot) handleWallet(ctx *th.Context, chatID int64, user *models.User, cmd Command) error {
	if len(cmd.Args) != 2 {
		b.reply(ctx, chatID, fmt.Sprintf("TRC20: %s\nBEP20: %s\n\nUsage: /wallet <TRC20|BEP20> <address>",
			orDash(user.WalletTRC20), orDash(user.WalletBEP20)))
		return nil
	}
	network, err := parseNetwork(cmd.Args[0])
	if err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	if err := b.Ledger.SetWalletAddress(ctx.Context(), user.ID, network, cmd.Args[1]); err != nil {
		b.reply(ctx, chatID, userMessage(err))
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ %s wallet saved.", network))
	return nil
}

func (b *Bot) handleHistory(ctx *th.Context, chatID int64, user *models.User, _ Command) error {
	b.reply(ctx, chatID, b.historyText(ctx, user))
	return nil
}

func (b *Bot) historyText(ctx *th.Context, user *models.User) string {
	txns, err := b.Ledger.ListTransactions(ctx.Context(), user.ID, 10)
	if err != nil {
		b.Logger.Error("Failed to list transactions", zap.Uint("user_id", user.ID), zap.Error(err))
		return userMessage(err)
	}
	return formatTransactions("📜 Recent transactions:", txns)
}

func (b *Bot) handleReferral(ctx *th.Context, chatID int64, user *models.User, _ Command) error {
	b.reply(ctx, chatID, b.referralText(ctx, user))
	return nil
}

func (b *Bot) referralText(ctx *th.Context, user *models.User) string {
	stats, err := b.Ledger.ReferralStats(ctx.Context(), user.ID)
	if err != nil {
		return userMessage(err)
	}

	botUsername := "earnify_bot"
	if info, err := ctx.Bot().GetMe(ctx.Context()); err == nil {
		botUsername = info.Username
	}
	return fmt.Sprintf("🤝 Referral program\n\n👥 Invited: %d\n🔑 Code: %s\n🔗 https://t.me/%s?start=%s",
		stats.Invited, stats.Code, botUsername, stats.Code)
}

func (b *Bot) handleMenuCallback(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	telegramID := callback.From.ID

	user, _, err := b.Ledger.RegisterUser(ctx.Context(), telegramID, callback.From.Username, "")
	var text string
	switch {
	case err != nil:
		text = userMessage(err)
	case callback.Data == "menu:balance":
		text = b.balanceText(ctx, user)
	case callback.Data == "menu:plans":
		text = b.plansText(ctx)
	case callback.Data == "menu:history":
		text = b.historyText(ctx, user)
	case callback.Data == "menu:referral":
		text = b.referralText(ctx, user)
	default:
		text = helpText
	}

	b.reply(ctx, telegramID, text)
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
