package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is owned by a User and is only ever written through the user aggregate.
// Principal and DailyEarningRate are snapshots taken from the plan at open time.
type Position struct {
	ID               uint            `gorm:"primaryKey"`
	UserID           uint            `gorm:"not null;index;uniqueIndex:idx_position_user_seq,priority:1"`
	Seq              int             `gorm:"not null;uniqueIndex:idx_position_user_seq,priority:2"`
	PlanID           uint            `gorm:"index"`
	Principal        decimal.Decimal `gorm:"type:numeric(32,8);not null"`
	DailyEarningRate decimal.Decimal `gorm:"type:numeric(32,8);not null"`
	StartedAt        time.Time       `gorm:"not null"`
	LastAccruedAt    time.Time       `gorm:"not null"`
	Active           bool            `gorm:"not null;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
