package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	maxAdminListLimit   = 500
)

// CreateDeposit records a pending deposit claim. The balance is untouched until an
// administrator marks it completed.
func (s *Service) CreateDeposit(ctx context.Context, userID uint, amount decimal.Decimal, network models.Network, addr, txid string) (*models.Transaction, error) {
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if err := ValidateAddress(network, addr); err != nil {
		return nil, err
	}
	txid = strings.TrimSpace(txid)
	if len(txid) < s.minTxIDLength || txid == "" {
		return nil, ErrMissingTxID
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	txn := newTransaction(user.ID, models.KindDeposit, amount, network, addr)
	txn.TxID = txid
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}

	s.logger.Info("Deposit requested",
		zap.String("transaction_id", txn.ID),
		zap.Uint("user_id", user.ID),
		zap.String("amount", amount.String()),
		zap.String("network", string(network)),
	)
	s.notify(ctx, txn, user)
	return txn, nil
}

// CreateWithdraw reserves the amount from the balance and records a pending withdrawal.
// An empty addr falls back to the user's saved wallet for the network.
func (s *Service) CreateWithdraw(ctx context.Context, userID uint, amount decimal.Decimal, network models.Network, addr string) (*models.Transaction, error) {
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	if addr == "" {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		addr = user.WalletAddress(network)
	}
	if err := ValidateAddress(network, addr); err != nil {
		return nil, err
	}
	if amount.LessThan(s.minWithdrawal) {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimumWithdrawal, s.minWithdrawal)
	}

	var (
		txn   *models.Transaction
		owner *models.User
	)
	err := s.atomic(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		user.Balance = user.Balance.Sub(amount)
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		txn = newTransaction(user.ID, models.KindWithdraw, amount, network, addr)
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("create withdraw: %w", err)
		}
		owner = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal requested",
		zap.String("transaction_id", txn.ID),
		zap.Uint("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("network", string(network)),
	)
	s.notify(ctx, txn, owner)
	return txn, nil
}

// SetTransactionStatus writes next onto the transaction and applies the balance
// effect of the edge, if any. The status write is a compare-and-set on the
// previous status inside the same store transaction as the balance update, so
// duplicate concurrent requests apply the effect once.
func (s *Service) SetTransactionStatus(ctx context.Context, id string, next models.TransactionStatus) (*models.Transaction, error) {
	if _, ok := models.ParseTransactionStatus(string(next)); !ok {
		return nil, ErrInvalidStatus
	}

	var (
		result *models.Transaction
		edge   Transition
	)
	err := s.atomic(ctx, func(tx Store) error {
		txn, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		edge = NextState(txn.Kind, txn.Status, txn.Settled, next)
		result = txn
		if !edge.Changed {
			return nil
		}

		if err := tx.CompareAndSetStatus(ctx, txn.ID, edge.From, edge.To, edge.Settled); err != nil {
			return err
		}
		if edge.Credit {
			user, err := tx.GetUser(ctx, txn.UserID)
			if err != nil {
				return err
			}
			user.Balance = user.Balance.Add(txn.Amount)
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
		}
		txn.Status = edge.To
		txn.Settled = edge.Settled
		return nil
	})
	if err != nil {
		return nil, err
	}

	if edge.Changed {
		s.logger.Info("Transaction status changed",
			zap.String("transaction_id", id),
			zap.String("from", string(edge.From)),
			zap.String("to", string(edge.To)),
			zap.Bool("balance_credited", edge.Credit),
		)
	} else if next != edge.From {
		s.logger.Warn("Ignored transaction status edge",
			zap.String("transaction_id", id),
			zap.String("from", string(edge.From)),
			zap.String("requested", string(next)),
		)
	}
	return result, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns a user's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, TransactionFilter{UserID: &userID, Limit: clampLimit(limit, maxHistoryLimit)})
}

// ListAllTransactions is the administrator view, optionally filtered by status.
func (s *Service) ListAllTransactions(ctx context.Context, status *models.TransactionStatus, limit int) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, TransactionFilter{Status: status, Limit: clampLimit(limit, maxAdminListLimit)})
}

type Stats struct {
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	Users            int64
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	deposits, err := s.store.SumTransactions(ctx, models.KindDeposit, models.StatusCompleted)
	if err != nil {
		return Stats{}, fmt.Errorf("sum deposits: %w", err)
	}
	withdrawals, err := s.store.SumTransactions(ctx, models.KindWithdraw, models.StatusCompleted)
	if err != nil {
		return Stats{}, fmt.Errorf("sum withdrawals: %w", err)
	}
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	return Stats{TotalDeposits: deposits, TotalWithdrawals: withdrawals, Users: users}, nil
}

func newTransaction(userID uint, kind models.TransactionKind, amount decimal.Decimal, network models.Network, addr string) *models.Transaction {
	return &models.Transaction{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		Currency:      "USD",
		Network:       network,
		WalletAddress: addr,
		Status:        models.StatusPending,
	}
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > max {
		return max
	}
	return limit
}
