package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"earnify-bot/internal/models"
)

// CreditPrecision is the number of decimal places credits are rounded to.
const CreditPrecision = 8

var hoursPerDay = decimal.NewFromInt(24)

// ValidAmount reports whether d is positive and representable in a money column
// without rounding.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(CreditPrecision))
}

// Accrual is the outcome of accruing one position up to a reference instant.
type Accrual struct {
	Hours      int64
	Credit     decimal.Decimal
	Checkpoint time.Time
}

// Accrue converts the whole hours elapsed since lastAccruedAt into a credit.
// The checkpoint advances by exactly Hours, so any sub-hour remainder is carried
// into the next call. Feeding Checkpoint back in with the same now yields zero.
func Accrue(dailyRate decimal.Decimal, lastAccruedAt, now time.Time) Accrual {
	hours := int64(now.Sub(lastAccruedAt) / time.Hour)
	if hours <= 0 {
		return Accrual{Credit: decimal.Zero, Checkpoint: lastAccruedAt}
	}

	credit := dailyRate.Mul(decimal.NewFromInt(hours)).Div(hoursPerDay).Round(CreditPrecision)
	return Accrual{
		Hours:      hours,
		Credit:     credit,
		Checkpoint: lastAccruedAt.Add(time.Duration(hours) * time.Hour),
	}
}

// accrueUser advances every active position of u to now and returns the summed credit.
// Positions that are inactive or already caught up are left untouched.
func accrueUser(u *models.User, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range u.ActivePositions() {
		if p.LastAccruedAt.Before(p.StartedAt) {
			p.LastAccruedAt = p.StartedAt
		}
		a := Accrue(p.DailyEarningRate, p.LastAccruedAt, now)
		if a.Hours <= 0 {
			continue
		}
		p.LastAccruedAt = a.Checkpoint
		total = total.Add(a.Credit)
	}
	return total
}
