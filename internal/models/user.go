package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           uint            `gorm:"primaryKey"`
	TelegramID   int64           `gorm:"uniqueIndex;not null"`
	Username     string          `gorm:"size:255"`
	Role         Role            `gorm:"size:16;default:'user'"`
	Balance      decimal.Decimal `gorm:"type:numeric(32,8);not null;default:0"`
	Version      int64           `gorm:"not null;default:0"` // bumped on every balance/positions write
	ReferrerID   *uint           `gorm:"index"`
	ReferralCode string          `gorm:"size:8;uniqueIndex;not null"`
	WalletTRC20  string          `gorm:"column:wallet_trc20;size:64"`
	WalletBEP20  string          `gorm:"column:wallet_bep20;size:64"`
	Positions    []Position      `gorm:"foreignKey:UserID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActivePositions returns pointers into u.Positions so callers can advance checkpoints in place.
func (u *User) ActivePositions() []*Position {
	var out []*Position
	for i := range u.Positions {
		if u.Positions[i].Active {
			out = append(out, &u.Positions[i])
		}
	}
	return out
}

func (u *User) WalletAddress(network Network) string {
	switch network {
	case NetworkTRC20:
		return u.WalletTRC20
	case NetworkBEP20:
		return u.WalletBEP20
	}
	return ""
}

func (u *User) SetWalletAddress(network Network, address string) {
	switch network {
	case NetworkTRC20:
		u.WalletTRC20 = address
	case NetworkBEP20:
		u.WalletBEP20 = address
	}
}
