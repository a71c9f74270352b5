package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentPlan is a catalog tier. Amount is the natural key.
type InvestmentPlan struct {
	ID               uint            `gorm:"primaryKey"`
	Amount           decimal.Decimal `gorm:"type:numeric(32,8);uniqueIndex;not null"`
	DailyEarningRate decimal.Decimal `gorm:"type:numeric(32,8);not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p InvestmentPlan) HourlyEarningRate() decimal.Decimal {
	return p.DailyEarningRate.Div(decimal.NewFromInt(24))
}
