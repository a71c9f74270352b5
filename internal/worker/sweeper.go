package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"earnify-bot/internal/ledger"
)

const sweepLockKey = "earnify:sweep:lock"

type SweepRunner interface {
	RunAccrualSweep(ctx context.Context, now time.Time) (ledger.SweepReport, error)
}

// Locker guards against two replicas sweeping at the same time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type ReportStore interface {
	SaveReport(ctx context.Context, report ledger.SweepReport) error
	LastReport(ctx context.Context) (*ledger.SweepReport, error)
}

// Sweeper runs the accrual sweep on a cron schedule.
type Sweeper struct {
	Runner   SweepRunner
	Locker   Locker
	Reports  ReportStore
	Logger   *zap.Logger
	Schedule string
	LockTTL  time.Duration
	Now      func() time.Time

	cron *cron.Cron
}

func NewSweeper(runner SweepRunner, locker Locker, reports ReportStore, logger *zap.Logger, schedule string, lockTTL time.Duration) *Sweeper {
	return &Sweeper{
		Runner:   runner,
		Locker:   locker,
		Reports:  reports,
		Logger:   logger,
		Schedule: schedule,
		LockTTL:  lockTTL,
		Now:      time.Now,
	}
}

// Start kicks off one sweep in the background, then follows the schedule until ctx is done.
// It returns without waiting for that first sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	id, err := s.cron.AddFunc(s.Schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.Schedule, err)
	}

	s.Logger.Info("Accrual sweep worker started", zap.String("schedule", s.Schedule))
	// the wrapped job shares the skip-if-running guard with scheduled ticks
	go s.cron.Entry(id).WrappedJob.Run()
	s.cron.Start()

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.Logger.Info("Accrual sweep worker stopped")
	}()
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, _, err := s.RunOnce(ctx); err != nil {
		s.Logger.Error("Accrual sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep. ran is false when another instance holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (report ledger.SweepReport, ran bool, err error) {
	if s.Locker != nil {
		release, ok, lockErr := s.Locker.TryLock(ctx, sweepLockKey, s.LockTTL)
		switch {
		case lockErr != nil:
			// accrual is idempotent, so a missing lock only risks duplicate work
			s.Logger.Warn("Sweep lock unavailable, running unlocked", zap.Error(lockErr))
		case !ok:
			sweepRuns.WithLabelValues("skipped").Inc()
			s.Logger.Info("Sweep already running elsewhere, skipping")
			return ledger.SweepReport{}, false, nil
		default:
			defer release()
		}
	}

	runID := uuid.NewString()
	started := time.Now()
	report, err = s.Runner.RunAccrualSweep(ledger.WithRunID(ctx, runID), s.Now())
	sweepDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		sweepRuns.WithLabelValues("error").Inc()
		return report, true, err
	}
	report.RunID = runID

	observeReport(report)
	if s.Reports != nil {
		if err := s.Reports.SaveReport(ctx, report); err != nil {
			s.Logger.Warn("Failed to cache sweep report", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return report, true, nil
}

func (s *Sweeper) LastReport(ctx context.Context) (*ledger.SweepReport, error) {
	if s.Reports == nil {
		return nil, nil
	}
	return s.Reports.LastReport(ctx)
}
