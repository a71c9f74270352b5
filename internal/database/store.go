package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
)

// Store is the gorm implementation of ledger.Store.
type Store struct {
	db   *gorm.DB
	inTx bool
}

var _ ledger.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx ledger.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

func (s *Store) transaction(ctx context.Context, fn func(db *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func orderedPositions(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Positions", orderedPositions).First(&u, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	return &u, nil
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Positions", orderedPositions).
		Where("telegram_id = ?", telegramID).First(&u).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("telegram user %d", telegramID))
	}
	return &u, nil
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, notFound(err, "referral code")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("user %d: %w", u.TelegramID, ledger.ErrDuplicate)
	}
	return err
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	if u.Balance.IsNegative() {
		return fmt.Errorf("user %d: refusing to persist negative balance: %w", u.ID, ledger.ErrInsufficientBalance)
	}

	now := time.Now().UTC()
	err := s.transaction(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.User{}).
			Where("id = ? AND version = ?", u.ID, u.Version).
			Updates(map[string]interface{}{
				"balance":      u.Balance,
				"wallet_trc20": u.WalletTRC20,
				"wallet_bep20": u.WalletBEP20,
				"version":      u.Version + 1,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("update user %d: %w", u.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d version %d: %w", u.ID, u.Version, ledger.ErrConflict)
		}

		for i := range u.Positions {
			p := &u.Positions[i]
			if p.ID == 0 {
				p.UserID = u.ID
				if err := db.Create(p).Error; err != nil {
					return fmt.Errorf("create position: %w", err)
				}
				continue
			}
			err := db.Model(&models.Position{}).Where("id = ? AND user_id = ?", p.ID, u.ID).
				Updates(map[string]interface{}{
					"last_accrued_at": p.LastAccruedAt,
					"active":          p.Active,
					"updated_at":      now,
				}).Error
			if err != nil {
				return fmt.Errorf("update position %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.Version++
	return nil
}

func (s *Store) UpdateUsername(ctx context.Context, id uint, username string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("username", username).Error
}

func (s *Store) SetRole(ctx context.Context, telegramIDs []int64, role models.Role) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("telegram_id IN ?", telegramIDs).Update("role", role)
	return res.RowsAffected, res.Error
}

func (s *Store) CountReferrals(ctx context.Context, referrerID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n, err
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (s *Store) UserIDsWithActivePositions(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Position{}).
		Where("active = ?", true).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]ledger.UserSummary, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	var counts []struct {
		ReferrerID uint
		Invited    int64
	}
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Select("referrer_id, COUNT(*) AS invited").
		Where("referrer_id IN ?", ids).
		Group("referrer_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}
	invited := make(map[uint]int64, len(counts))
	for _, c := range counts {
		invited[c.ReferrerID] = c.Invited
	}

	out := make([]ledger.UserSummary, len(users))
	for i, u := range users {
		out[i] = ledger.UserSummary{
			ID:           u.ID,
			TelegramID:   u.TelegramID,
			Username:     u.Username,
			Role:         u.Role,
			Balance:      u.Balance,
			ReferralCode: u.ReferralCode,
			Referrals:    invited[u.ID],
			CreatedAt:    u.CreatedAt,
		}
	}
	return out, nil
}

func (s *Store) GetPlanByAmount(ctx context.Context, amount decimal.Decimal) (*models.InvestmentPlan, error) {
	var p models.InvestmentPlan
	if err := s.db.WithContext(ctx).Where("amount = ?", amount).First(&p).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("plan %s", amount))
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]models.InvestmentPlan, error) {
	var plans []models.InvestmentPlan
	err := s.db.WithContext(ctx).Order("amount ASC").Find(&plans).Error
	return plans, err
}

// UpsertPlan inserts the plan or updates the rate of the plan with the same amount.
func (s *Store) UpsertPlan(ctx context.Context, plan *models.InvestmentPlan) error {
	return s.transaction(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "amount"}},
			DoUpdates: clause.AssignmentColumns([]string{"daily_earning_rate", "updated_at"}),
		}).Create(plan).Error
		if err != nil {
			return err
		}
		var saved models.InvestmentPlan
		if err := db.Where("amount = ?", plan.Amount).First(&saved).Error; err != nil {
			return err
		}
		*plan = saved
		return nil
	})
}

func (s *Store) DeletePlan(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.InvestmentPlan{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("plan %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("transaction %s", id))
	}
	return &t, nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, prev, next models.TransactionStatus, settled bool) error {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, prev).
		Updates(map[string]interface{}{
			"status":     next,
			"settled":    settled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update transaction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s no longer %s: %w", id, prev, ledger.ErrConflict)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var out []models.Transaction
	err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

func (s *Store) SumTransactions(ctx context.Context, kind models.TransactionKind, status models.TransactionStatus) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("kind = ? AND status = ?", kind, status).
		Row().Scan(&sum)
	return sum, err
}
