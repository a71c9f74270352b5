package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

// UpsertPlan creates a plan or, when one with the same amount exists, replaces its rate.
// Open positions keep the rate they were opened with.
func (s *Service) UpsertPlan(ctx context.Context, amount, dailyRate decimal.Decimal) (*models.InvestmentPlan, error) {
	if !ValidAmount(amount) || !ValidAmount(dailyRate) {
		return nil, ErrInvalidAmount
	}
	plan := &models.InvestmentPlan{Amount: amount, DailyEarningRate: dailyRate}
	if err := s.store.UpsertPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}
	s.logger.Info("Plan saved",
		zap.String("amount", amount.String()),
		zap.String("daily_rate", dailyRate.String()),
	)
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]models.InvestmentPlan, error) {
	return s.store.ListPlans(ctx)
}

func (s *Service) DeletePlan(ctx context.Context, id uint) error {
	return s.store.DeletePlan(ctx, id)
}

// SeedPlans upserts the given catalog entries.
func (s *Service) SeedPlans(ctx context.Context, plans []models.InvestmentPlan) error {
	for _, p := range plans {
		if _, err := s.UpsertPlan(ctx, p.Amount, p.DailyEarningRate); err != nil {
			return fmt.Errorf("seed plan %s: %w", p.Amount, err)
		}
	}
	return nil
}

func (s *Service) findPlan(ctx context.Context, amount decimal.Decimal) (*models.InvestmentPlan, error) {
	plan, err := s.store.GetPlanByAmount(ctx, amount)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnknownPlan
	}
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return plan, nil
}
