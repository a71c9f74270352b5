package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

// OpenPosition debits the plan amount and appends a position snapshotting the plan.
func (s *Service) OpenPosition(ctx context.Context, userID uint, amount decimal.Decimal) (*models.Position, error) {
	plan, err := s.findPlan(ctx, amount)
	if err != nil {
		return nil, err
	}

	var opened models.Position
	err = s.atomic(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(plan.Amount) {
			return ErrInsufficientBalance
		}

		now := s.clock()
		user.Balance = user.Balance.Sub(plan.Amount)
		user.Positions = append(user.Positions, models.Position{
			UserID:           user.ID,
			Seq:              nextSeq(user.Positions),
			PlanID:           plan.ID,
			Principal:        plan.Amount,
			DailyEarningRate: plan.DailyEarningRate,
			StartedAt:        now,
			LastAccruedAt:    now,
			Active:           true,
		})
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		opened = user.Positions[len(user.Positions)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Position opened",
		zap.Uint("user_id", userID),
		zap.String("principal", opened.Principal.String()),
		zap.String("daily_rate", opened.DailyEarningRate.String()),
	)
	return &opened, nil
}

func nextSeq(positions []models.Position) int {
	seq := 0
	for _, p := range positions {
		if p.Seq > seq {
			seq = p.Seq
		}
	}
	return seq + 1
}
