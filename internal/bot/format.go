package bot

import (
	"fmt"
	"strings"

	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
)

func formatTransaction(t models.Transaction) string {
	return fmt.Sprintf("%s %s $%s %s [%s] %s",
		t.CreatedAt.Format("02.01.2006 15:04"), t.Kind, t.Amount.String(), t.Network, t.Status, t.ID)
}

func formatTransactions(title string, txns []models.Transaction) string {
	if len(txns) == 0 {
		return title + "\n\nNo transactions yet."
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, t := range txns {
		b.WriteString("\n")
		b.WriteString(formatTransaction(t))
	}
	return b.String()
}

func formatPlans(plans []models.InvestmentPlan) string {
	if len(plans) == 0 {
		return "No investment plans available."
	}
	var b strings.Builder
	b.WriteString("📊 Investment plans:\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n#%d  $%s → $%s/day", p.ID, p.Amount.String(), p.DailyEarningRate.String())
	}
	b.WriteString("\n\nOpen one with /invest <amount>")
	return b.String()
}

func formatSnapshot(s ledger.Snapshot) string {
	return fmt.Sprintf("👤 Balance: $%s\n💼 Invested: $%s (%d positions)\n📈 Daily earning: $%s",
		s.Balance.String(), s.InvestedAmount.String(), s.ActivePositions, s.DailyEarning.String())
}

func formatReport(r *ledger.SweepReport) string {
	if r == nil {
		return "No sweep has run yet."
	}
	return fmt.Sprintf("🕐 Sweep %s\nFinished: %s\nUsers scanned: %d\nUpdated: %d\nFailed: %d\nCredited: $%s",
		r.RunID, r.FinishedAt.Format("02.01.2006 15:04:05"), r.UsersScanned, r.UsersUpdated, r.UsersFailed, r.TotalCredited.String())
}

func formatAdminNotice(t *models.Transaction, u *models.User) string {
	var b strings.Builder
	switch t.Kind {
	case models.KindDeposit:
		b.WriteString("💰 New deposit needs verification\n\n")
	case models.KindWithdraw:
		b.WriteString("💸 New withdrawal needs processing\n\n")
	}
	fmt.Fprintf(&b, "User: @%s (id %d, tg %d)\n", u.Username, u.ID, u.TelegramID)
	fmt.Fprintf(&b, "Amount: $%s %s\n", t.Amount.String(), t.Currency)
	fmt.Fprintf(&b, "Network: %s\n", t.Network)
	fmt.Fprintf(&b, "Address: %s\n", t.WalletAddress)
	if t.TxID != "" {
		fmt.Fprintf(&b, "TXID: %s\n", t.TxID)
	}
	fmt.Fprintf(&b, "Transaction: %s", t.ID)
	return b.String()
}

func formatUsers(users []ledger.UserSummary) string {
	if len(users) == 0 {
		return "No users yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Newest %d users:\n", len(users))
	for _, u := range users {
		name := u.Username
		if name == "" {
			name = "—"
		} else {
			name = "@" + name
		}
		fmt.Fprintf(&b, "\n#%d %s [%s] $%s, invited %d, joined %s",
			u.ID, name, u.Role, u.Balance.String(), u.Referrals, u.CreatedAt.Format("02.01.2006"))
	}
	return b.String()
}
