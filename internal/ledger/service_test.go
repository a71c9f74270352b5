package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"earnify-bot/internal/database"
	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
)

const (
	tronAddr = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	bscAddr  = "0x55d398326f99059fF775485246999027B3197955"
)

type fixture struct {
	svc *ledger.Service
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith lets a test intercept store calls and swap the admin predicate.
func newFixtureWith(t *testing.T, wrap func(ledger.Store) ledger.Store, authz ledger.Authorizer) *fixture {
	t.Helper()

	db, err := database.ConnectSQLite(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	var store ledger.Store = database.NewStore(db)
	if wrap != nil {
		store = wrap(store)
	}
	f.svc = ledger.NewService(store, zaptest.NewLogger(t), ledger.Options{
		MinWithdrawal:    decimal.NewFromInt(5),
		MinTxIDLength:    6,
		SweepWorkers:     4,
		SweepUserTimeout: 5 * time.Second,
		Now:              func() time.Time { return f.now },
		Authorizer:       authz,
	})
	require.NoError(t, f.svc.SeedPlans(context.Background(), []models.InvestmentPlan{
		{Amount: dec("20"), DailyEarningRate: dec("0.6")},
		{Amount: dec("100"), DailyEarningRate: dec("2.4")},
	}))
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) user(t *testing.T, telegramID int64) *models.User {
	t.Helper()
	u, created, err := f.svc.RegisterUser(context.Background(), telegramID, "user", "")
	require.NoError(t, err)
	require.True(t, created)
	return u
}

// fund credits the user through a confirmed deposit.
func (f *fixture) fund(t *testing.T, userID uint, amount string) {
	t.Helper()
	ctx := context.Background()
	txn, err := f.svc.CreateDeposit(ctx, userID, dec(amount), models.NetworkTRC20, tronAddr, "0xdeadbeef")
	require.NoError(t, err)
	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	u, err := f.svc.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestOpenPositionAccruesDailyEarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "20")

	pos, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
	require.NoError(t, err)
	assertDecimal(t, "20", pos.Principal)
	assertDecimal(t, "0.6", pos.DailyEarningRate)
	assert.Equal(t, 1, pos.Seq)
	assert.Equal(t, f.now, pos.StartedAt)
	assertDecimal(t, "0", f.balance(t, u.ID))

	f.now = f.now.Add(24 * time.Hour)
	report, err := f.svc.RunAccrualSweep(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsersScanned)
	assert.Equal(t, 1, report.UsersUpdated)
	assert.Zero(t, report.UsersFailed)
	assertDecimal(t, "0.6", report.TotalCredited)
	assertDecimal(t, "0.6", f.balance(t, u.ID))

	// same instant again credits nothing
	report, err = f.svc.RunAccrualSweep(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsersScanned)
	assert.Zero(t, report.UsersUpdated)
	assertDecimal(t, "0.6", f.balance(t, u.ID))
}

func TestSweepBeforeFirstHourIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "20")
	_, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
	require.NoError(t, err)

	before, err := f.svc.GetUser(ctx, u.ID)
	require.NoError(t, err)

	f.now = f.now.Add(59 * time.Minute)
	report, err := f.svc.RunAccrualSweep(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, report.UsersUpdated)

	after, err := f.svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Positions[0].LastAccruedAt, after.Positions[0].LastAccruedAt)
}

func TestOpenPositionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	_, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = f.svc.OpenPosition(ctx, u.ID, dec("7"))
	assert.ErrorIs(t, err, ledger.ErrUnknownPlan)

	got, err := f.svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assertDecimal(t, "10", got.Balance)
	assert.Empty(t, got.Positions)
}

func TestPositionKeepsRateAfterPlanChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "40")

	_, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
	require.NoError(t, err)

	plan, err := f.svc.UpsertPlan(ctx, dec("20"), dec("1.2"))
	require.NoError(t, err)
	assertDecimal(t, "1.2", plan.DailyEarningRate)

	second, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Seq)
	assertDecimal(t, "1.2", second.DailyEarningRate)

	require.NoError(t, f.svc.DeletePlan(ctx, plan.ID))
	assert.ErrorIs(t, f.svc.DeletePlan(ctx, plan.ID), ledger.ErrNotFound)

	f.now = f.now.Add(24 * time.Hour)
	_, err = f.svc.RunAccrualSweep(ctx, f.now)
	require.NoError(t, err)
	assertDecimal(t, "1.8", f.balance(t, u.ID))

	snap, err := f.svc.GetUserSnapshot(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ActivePositions)
	assertDecimal(t, "40", snap.InvestedAmount)
	assertDecimal(t, "1.8", snap.DailyEarning)
}

func TestWithdrawReservesAndRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	txn, err := f.svc.CreateWithdraw(ctx, u.ID, dec("10"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, txn.Status)
	assertDecimal(t, "0", f.balance(t, u.ID))

	got, err := f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.True(t, got.Settled)
	assertDecimal(t, "10", f.balance(t, u.ID))

	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusFailed)
	require.NoError(t, err)
	assertDecimal(t, "10", f.balance(t, u.ID))

	got, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assertDecimal(t, "10", f.balance(t, u.ID))
}

func TestCompletedWithdrawKeepsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	txn, err := f.svc.CreateWithdraw(ctx, u.ID, dec("6"), models.NetworkBEP20, bscAddr)
	require.NoError(t, err)
	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
	require.NoError(t, err)
	assertDecimal(t, "4", f.balance(t, u.ID))
}

func TestDepositCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)

	txn, err := f.svc.CreateDeposit(ctx, u.ID, dec("50"), models.NetworkBEP20, bscAddr, "0xabcdef0123")
	require.NoError(t, err)
	assertDecimal(t, "0", f.balance(t, u.ID))

	for i := 0; i < 2; i++ {
		_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
		require.NoError(t, err)
	}
	assertDecimal(t, "50", f.balance(t, u.ID))

	// correcting the status afterwards moves no money
	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusFailed)
	require.NoError(t, err)
	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
	require.NoError(t, err)
	assertDecimal(t, "50", f.balance(t, u.ID))
}

func TestConcurrentStatusUpdatesApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)

	txn, err := f.svc.CreateDeposit(ctx, u.ID, dec("25"), models.NetworkTRC20, tronAddr, "abcdef123456")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertDecimal(t, "25", f.balance(t, u.ID))
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	_, err := f.svc.CreateWithdraw(ctx, u.ID, dec("4"), models.NetworkTRC20, tronAddr)
	assert.ErrorIs(t, err, ledger.ErrBelowMinimumWithdrawal)

	_, err = f.svc.CreateWithdraw(ctx, u.ID, dec("4"), models.NetworkTRC20, "not-an-address")
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	_, err = f.svc.CreateWithdraw(ctx, u.ID, dec("6"), models.NetworkBEP20, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	_, err = f.svc.CreateWithdraw(ctx, u.ID, dec("11"), models.NetworkTRC20, tronAddr)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = f.svc.CreateWithdraw(ctx, u.ID, dec("-1"), models.NetworkTRC20, tronAddr)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.CreateDeposit(ctx, u.ID, dec("10"), models.NetworkTRC20, tronAddr, "abc")
	assert.ErrorIs(t, err, ledger.ErrMissingTxID)

	_, err = f.svc.CreateDeposit(ctx, u.ID, dec("10"), models.NetworkBEP20, tronAddr, "abcdef123")
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	_, err = f.svc.SetTransactionStatus(ctx, "missing", models.StatusCompleted)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.svc.SetTransactionStatus(ctx, "missing", models.TransactionStatus("approved"))
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	assertDecimal(t, "10", f.balance(t, u.ID))
}

func TestWithdrawUsesSavedWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	assert.ErrorIs(t, f.svc.SetWalletAddress(ctx, u.ID, models.NetworkBEP20, "0x123"), ledger.ErrInvalidAddress)
	require.NoError(t, f.svc.SetWalletAddress(ctx, u.ID, models.NetworkBEP20, bscAddr))

	txn, err := f.svc.CreateWithdraw(ctx, u.ID, dec("5"), models.NetworkBEP20, "")
	require.NoError(t, err)
	assert.Equal(t, bscAddr, txn.WalletAddress)
	assertDecimal(t, "5", f.balance(t, u.ID))
}

// Balance plus invested principal plus pending withdrawals equals confirmed
// deposits plus accrued earnings.
func TestBalanceConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "150")

	_, err := f.svc.OpenPosition(ctx, u.ID, dec("100"))
	require.NoError(t, err)
	_, err = f.svc.OpenPosition(ctx, u.ID, dec("20"))
	require.NoError(t, err)

	accrued := decimal.Zero
	for i := 0; i < 30; i++ {
		f.now = f.now.Add(time.Hour)
		report, err := f.svc.RunAccrualSweep(ctx, f.now)
		require.NoError(t, err)
		accrued = accrued.Add(report.TotalCredited)
	}
	assertDecimal(t, "3.75", accrued)

	_, err = f.svc.CreateWithdraw(ctx, u.ID, dec("12"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)

	snap, err := f.svc.GetUserSnapshot(ctx, u.ID)
	require.NoError(t, err)
	pending := models.StatusPending
	txns, err := f.svc.ListAllTransactions(ctx, &pending, 0)
	require.NoError(t, err)
	pendingOut := decimal.Zero
	for _, txn := range txns {
		if txn.Kind == models.KindWithdraw {
			pendingOut = pendingOut.Add(txn.Amount)
		}
	}

	held := snap.Balance.Add(snap.InvestedAmount).Add(pendingOut)
	assertDecimal(t, dec("150").Add(accrued).String(), held)
}

func TestSweepSkipsUsersWithoutPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		u := f.user(t, id)
		f.fund(t, u.ID, "20")
		if id%2 == 1 {
			_, err := f.svc.OpenPosition(ctx, u.ID, dec("20"))
			require.NoError(t, err)
		}
	}

	f.now = f.now.Add(2 * time.Hour)
	report, err := f.svc.RunAccrualSweep(ledger.WithRunID(ctx, "run-1"), f.now)
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.UsersScanned)
	assert.Equal(t, 3, report.UsersUpdated)
	assertDecimal(t, "0.15", report.TotalCredited)
}

func TestRegisterUserWithReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := f.user(t, 1)
	assert.Len(t, referrer.ReferralCode, 8)

	invited, created, err := f.svc.RegisterUser(ctx, 2, "friend", referrer.ReferralCode)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, invited.ReferrerID)
	assert.Equal(t, referrer.ID, *invited.ReferrerID)

	again, created, err := f.svc.RegisterUser(ctx, 2, "renamed", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, invited.ID, again.ID)
	assert.Equal(t, "renamed", again.Username)

	stranger, _, err := f.svc.RegisterUser(ctx, 3, "", "NOSUCHCD")
	require.NoError(t, err)
	assert.Nil(t, stranger.ReferrerID)

	stats, err := f.svc.ReferralStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, referrer.ReferralCode, stats.Code)
	assert.EqualValues(t, 1, stats.Invited)
}

func TestPromoteAdminsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, 100)
	u := f.user(t, 1)
	f.fund(t, u.ID, "30")

	txn, err := f.svc.CreateWithdraw(ctx, u.ID, dec("10"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)
	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusCompleted)
	require.NoError(t, err)

	n, err := f.svc.PromoteAdmins(ctx, []int64{100, 999})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	admin, err = f.svc.GetUserByTelegramID(ctx, admin.TelegramID)
	require.NoError(t, err)
	assert.True(t, f.svc.IsAdmin(admin))
	assert.False(t, f.svc.IsAdmin(u))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Users)
	assertDecimal(t, "30", stats.TotalDeposits)
	assertDecimal(t, "10", stats.TotalWithdrawals)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	other := f.user(t, 2)
	f.fund(t, u.ID, "10")
	f.fund(t, other.ID, "10")

	w, err := f.svc.CreateWithdraw(ctx, u.ID, dec("5"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)

	txns, err := f.svc.ListTransactions(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, w.ID, txns[0].ID)
	assert.Equal(t, models.KindDeposit, txns[1].Kind)

	txns, err = f.svc.ListTransactions(ctx, u.ID, 1)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (n *recordingNotifier) TransactionCreated(_ context.Context, txn *models.Transaction, _ *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, txn.ID)
	return n.err
}

func TestNotifierIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	n := &recordingNotifier{err: errors.New("telegram down")}
	f.svc.SetNotifier(n)

	d, err := f.svc.CreateDeposit(ctx, u.ID, dec("10"), models.NetworkTRC20, tronAddr, "abcdef123")
	require.NoError(t, err)
	w, err := f.svc.CreateWithdraw(ctx, u.ID, dec("5"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)

	assert.Equal(t, []string{d.ID, w.ID}, n.seen)
	assertDecimal(t, "5", f.balance(t, u.ID))
}

func TestAmountsLimitedToMoneyPrecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1)
	f.fund(t, u.ID, "10")

	_, err := f.svc.CreateWithdraw(ctx, u.ID, dec("5.000000005"), models.NetworkTRC20, tronAddr)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	assertDecimal(t, "10", f.balance(t, u.ID))

	_, err = f.svc.CreateDeposit(ctx, u.ID, dec("1.123456789"), models.NetworkTRC20, tronAddr, "abcdef123")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.UpsertPlan(ctx, dec("30"), dec("0.123456789"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	txn, err := f.svc.CreateWithdraw(ctx, u.ID, dec("5.00000001"), models.NetworkTRC20, tronAddr)
	require.NoError(t, err)
	assertDecimal(t, "4.99999999", f.balance(t, u.ID))

	stored, err := f.svc.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assertDecimal(t, txn.Amount.String(), stored.Amount)

	_, err = f.svc.SetTransactionStatus(ctx, txn.ID, models.StatusFailed)
	require.NoError(t, err)
	assertDecimal(t, "10", f.balance(t, u.ID))
}

func TestListUsersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.user(t, 1)
	second, _, err := f.svc.RegisterUser(ctx, 2, "two", first.ReferralCode)
	require.NoError(t, err)
	third, _, err := f.svc.RegisterUser(ctx, 3, "three", first.ReferralCode)
	require.NoError(t, err)
	f.fund(t, second.ID, "12.5")
	_, err = f.svc.PromoteAdmins(ctx, []int64{1})
	require.NoError(t, err)

	users, err := f.svc.ListUsers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []uint{third.ID, second.ID, first.ID}, []uint{users[0].ID, users[1].ID, users[2].ID})
	assert.EqualValues(t, 2, users[2].Referrals)
	assert.Equal(t, models.RoleAdmin, users[2].Role)
	assert.Zero(t, users[1].Referrals)
	assertDecimal(t, "12.5", users[1].Balance)

	users, err = f.svc.ListUsers(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
