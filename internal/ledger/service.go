package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"earnify-bot/internal/models"
)

const maxConflictRetries = 5

// Notifier receives best-effort notifications after a transaction is created.
type Notifier interface {
	TransactionCreated(ctx context.Context, txn *models.Transaction, user *models.User) error
}

type Options struct {
	MinWithdrawal    decimal.Decimal
	MinTxIDLength    int
	SweepWorkers     int
	SweepUserTimeout time.Duration
	Now              func() time.Time
	// Authorizer defaults to RoleAuthorizer.
	Authorizer       Authorizer
}

type Service struct {
	store    Store
	notifier Notifier
	authz    Authorizer
	logger   *zap.Logger

	minWithdrawal    decimal.Decimal
	minTxIDLength    int
	sweepWorkers     int
	sweepUserTimeout time.Duration
	now              func() time.Time
}

func NewService(store Store, logger *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = 1
	}
	if opts.SweepUserTimeout <= 0 {
		opts.SweepUserTimeout = 10 * time.Second
	}
	if opts.Authorizer == nil {
		opts.Authorizer = RoleAuthorizer{}
	}
	return &Service{
		store:            store,
		authz:            opts.Authorizer,
		logger:           logger,
		minWithdrawal:    opts.MinWithdrawal,
		minTxIDLength:    opts.MinTxIDLength,
		sweepWorkers:     opts.SweepWorkers,
		sweepUserTimeout: opts.SweepUserTimeout,
		now:              opts.Now,
	}
}

// SetNotifier installs the sink called after deposit and withdraw creation.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) IsAdmin(u *models.User) bool {
	return s.authz.IsAdmin(u)
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// atomic runs fn in a store transaction and retries it while the store reports a conflict.
func (s *Service) atomic(ctx context.Context, fn func(tx Store) error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = s.store.Atomic(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("Optimistic conflict, retrying", zap.Int("attempt", attempt))
	}
	return err
}

func (s *Service) notify(ctx context.Context, txn *models.Transaction, user *models.User) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TransactionCreated(ctx, txn, user); err != nil {
		s.logger.Warn("Failed to send transaction notification",
			zap.String("transaction_id", txn.ID),
			zap.Error(err),
		)
	}
}
