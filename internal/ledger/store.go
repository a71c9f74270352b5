package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"earnify-bot/internal/models"
)

// Store is the durable ledger. Implementations translate missing rows to ErrNotFound
// and stale writes to ErrConflict.
type Store interface {
	// Atomic runs fn against a Store bound to a single database transaction.
	// Any error returned by fn rolls everything back.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// SaveUser writes balance, wallet addresses and positions only if u.Version
	// still matches the stored row, then increments u.Version.
	SaveUser(ctx context.Context, u *models.User) error
	UpdateUsername(ctx context.Context, id uint, username string) error
	SetRole(ctx context.Context, telegramIDs []int64, role models.Role) (int64, error)
	CountReferrals(ctx context.Context, referrerID uint) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	UserIDsWithActivePositions(ctx context.Context) ([]uint, error)
	// ListUsers returns the newest users first with their referral counts.
	ListUsers(ctx context.Context, limit int) ([]UserSummary, error)

	GetPlanByAmount(ctx context.Context, amount decimal.Decimal) (*models.InvestmentPlan, error)
	ListPlans(ctx context.Context) ([]models.InvestmentPlan, error)
	UpsertPlan(ctx context.Context, plan *models.InvestmentPlan) error
	DeletePlan(ctx context.Context, id uint) error

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// CompareAndSetStatus moves a transaction out of prev. It returns ErrConflict
	// when the stored status is no longer prev.
	CompareAndSetStatus(ctx context.Context, id string, prev, next models.TransactionStatus, settled bool) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, kind models.TransactionKind, status models.TransactionStatus) (decimal.Decimal, error)
}

type TransactionFilter struct {
	UserID *uint
	Status *models.TransactionStatus
	Limit  int
}
