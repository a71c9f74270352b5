package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SweepReport struct {
	RunID         string
	UsersScanned  int
	UsersUpdated  int
	UsersFailed   int
	TotalCredited decimal.Decimal
	StartedAt     time.Time
	FinishedAt    time.Time
}

// RunAccrualSweep credits earned hours to every user holding an active position.
// Users are processed independently; a failure is logged and that user's
// checkpoints stay where they were, so the next sweep recovers the credit.
// Only a failure to list users is returned as an error.
func (s *Service) RunAccrualSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	report := SweepReport{TotalCredited: decimal.Zero, StartedAt: s.clock()}
	logger := s.logger
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		report.RunID = id
		logger = logger.With(zap.String("run_id", id))
	}

	ids, err := s.store.UserIDsWithActivePositions(ctx)
	if err != nil {
		return report, fmt.Errorf("list users with active positions: %w", err)
	}
	report.UsersScanned = len(ids)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.sweepWorkers)

	for _, id := range ids {
		g.Go(func() error {
			credited, err := s.sweepUser(ctx, id, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.UsersFailed++
				logger.Warn("Accrual skipped for user, will retry next sweep",
					zap.Uint("user_id", id),
					zap.Error(err),
				)
			case credited.IsPositive():
				report.UsersUpdated++
				report.TotalCredited = report.TotalCredited.Add(credited)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.clock()
	logger.Info("Accrual sweep finished",
		zap.Int("users_scanned", report.UsersScanned),
		zap.Int("users_updated", report.UsersUpdated),
		zap.Int("users_failed", report.UsersFailed),
		zap.String("total_credited", report.TotalCredited.String()),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *Service) sweepUser(ctx context.Context, userID uint, now time.Time) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sweepUserTimeout)
	defer cancel()

	credited := decimal.Zero
	err := s.atomic(ctx, func(tx Store) error {
		credited = decimal.Zero
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		delta := accrueUser(user, now)
		if delta.IsZero() {
			return nil
		}
		user.Balance = user.Balance.Add(delta)
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		credited = delta
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return credited, nil
}

type runIDKey struct{}

// WithRunID tags a sweep context so the report and log lines carry the run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}
