package ledger

import "earnify-bot/internal/models"

// Transition describes what writing a status onto a transaction does.
type Transition struct {
	From    models.TransactionStatus
	To      models.TransactionStatus
	Changed bool // status column must be written
	Credit  bool // transaction amount goes to the owner's balance
	Settled bool // value of the settled flag after the write
}

// NextState is the transaction state machine. Writing the current status again,
// or moving a terminal transaction back to pending, leaves it unchanged.
//
// Balance effects:
//   - deposit entering completed credits the amount (deposits are unfunded until confirmed)
//   - withdraw entering failed refunds the reservation taken at creation
//
// Each effect is applied at most once per transaction, tracked by the settled flag.
func NextState(kind models.TransactionKind, current models.TransactionStatus, settled bool, next models.TransactionStatus) Transition {
	t := Transition{From: current, To: current, Settled: settled}
	if next == current {
		return t
	}
	if current.Terminal() && next == models.StatusPending {
		return t
	}

	t.To = next
	t.Changed = true

	if settled {
		return t
	}
	switch {
	case kind == models.KindDeposit && next == models.StatusCompleted:
		t.Credit, t.Settled = true, true
	case kind == models.KindWithdraw && next == models.StatusFailed:
		t.Credit, t.Settled = true, true
	}
	return t
}
