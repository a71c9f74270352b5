package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

// RegisterUser finds the user by Telegram id or creates one with a fresh referral code.
// A referral code is honoured only at creation and only when it belongs to another user.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, username, referralCode string) (*models.User, bool, error) {
	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		if username != "" && username != user.Username {
			if err := s.store.UpdateUsername(ctx, user.ID, username); err != nil {
				s.logger.Warn("Failed to update username", zap.Uint("user_id", user.ID), zap.Error(err))
			}
			user.Username = username
		}
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	var referrerID *uint
	if referralCode = strings.ToUpper(strings.TrimSpace(referralCode)); referralCode != "" {
		referrer, err := s.store.GetUserByReferralCode(ctx, referralCode)
		switch {
		case err == nil && referrer.TelegramID != telegramID:
			referrerID = &referrer.ID
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	}

	for attempt := 1; ; attempt++ {
		code, err := s.uniqueReferralCode(ctx)
		if err != nil {
			return nil, false, err
		}
		user = &models.User{
			TelegramID:   telegramID,
			Username:     username,
			Role:         models.RoleUser,
			Balance:      decimal.Zero,
			ReferralCode: code,
			ReferrerID:   referrerID,
		}

		err = s.store.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicate) || attempt >= maxReferralRetries {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		// either a concurrent update registered this account first, or the code was taken since the lookup
		if existing, err := s.store.GetUserByTelegramID(ctx, telegramID); err == nil {
			return existing, false, nil
		}
		s.logger.Debug("Referral code collision, retrying", zap.Int("attempt", attempt))
	}

	s.logger.Info("User registered",
		zap.Uint("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.Bool("referred", user.ReferrerID != nil),
	)
	return user, true, nil
}

func (s *Service) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < maxReferralRetries; i++ {
		code, err := NewReferralCode()
		if err != nil {
			return "", err
		}
		_, err = s.store.GetUserByReferralCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free referral code after %d attempts", maxReferralRetries)
}

// PromoteAdmins grants the admin role to the given Telegram accounts.
func (s *Service) PromoteAdmins(ctx context.Context, telegramIDs []int64) (int64, error) {
	if len(telegramIDs) == 0 {
		return 0, nil
	}
	return s.store.SetRole(ctx, telegramIDs, models.RoleAdmin)
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.store.GetUserByTelegramID(ctx, telegramID)
}

// SetWalletAddress stores the default payout address for a network.
func (s *Service) SetWalletAddress(ctx context.Context, userID uint, network models.Network, addr string) error {
	if err := ValidateAddress(network, addr); err != nil {
		return err
	}
	return s.atomic(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		user.SetWalletAddress(network, addr)
		return tx.SaveUser(ctx, user)
	})
}

type Snapshot struct {
	Balance         decimal.Decimal
	InvestedAmount  decimal.Decimal
	DailyEarning    decimal.Decimal
	ActivePositions int
}

// GetUserSnapshot sums principal and daily rate across active positions.
func (s *Service) GetUserSnapshot(ctx context.Context, userID uint) (Snapshot, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Balance: user.Balance, InvestedAmount: decimal.Zero, DailyEarning: decimal.Zero}
	for _, p := range user.ActivePositions() {
		snap.InvestedAmount = snap.InvestedAmount.Add(p.Principal)
		snap.DailyEarning = snap.DailyEarning.Add(p.DailyEarningRate)
		snap.ActivePositions++
	}
	return snap, nil
}

type ReferralStats struct {
	Code    string
	Invited int64
}

func (s *Service) ReferralStats(ctx context.Context, userID uint) (ReferralStats, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return ReferralStats{}, err
	}
	invited, err := s.store.CountReferrals(ctx, user.ID)
	if err != nil {
		return ReferralStats{}, fmt.Errorf("count referrals: %w", err)
	}
	return ReferralStats{Code: user.ReferralCode, Invited: invited}, nil
}

const maxUserListLimit = 200

// UserSummary is one row of the admin user list.
type UserSummary struct {
	ID           uint
	TelegramID   int64
	Username     string
	Role         models.Role
	Balance      decimal.Decimal
	ReferralCode string
	Referrals    int64
	CreatedAt    time.Time
}

// ListUsers returns up to limit users, newest first. A non-positive limit means the maximum.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]UserSummary, error) {
	if limit <= 0 || limit > maxUserListLimit {
		limit = maxUserListLimit
	}
	users, err := s.store.ListUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
