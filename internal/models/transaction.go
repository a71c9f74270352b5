package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"
	KindWithdraw TransactionKind = "withdraw"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

func ParseTransactionStatus(s string) (TransactionStatus, bool) {
	switch st := TransactionStatus(s); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, true
	}
	return "", false
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Network string

const (
	NetworkTRC20 Network = "TRC20"
	NetworkBEP20 Network = "BEP20"
)

func ParseNetwork(s string) (Network, bool) {
	switch n := Network(s); n {
	case NetworkTRC20, NetworkBEP20:
		return n, true
	}
	return "", false
}

type Transaction struct {
	ID            string            `gorm:"primaryKey;size:26"` // ULID
	UserID        uint              `gorm:"not null;index"`
	Kind          TransactionKind   `gorm:"size:16;not null;index"`
	Amount        decimal.Decimal   `gorm:"type:numeric(32,8);not null"`
	Currency      string            `gorm:"size:8;default:'USD'"`
	Network       Network           `gorm:"size:8;not null"`
	WalletAddress string            `gorm:"size:128;not null"`
	TxID          string            `gorm:"column:txid;size:128"`
	Status        TransactionStatus `gorm:"size:16;not null;default:'pending';index"`
	Settled       bool              `gorm:"not null;default:false"` // balance effect of a status edge already applied
	CreatedAt     time.Time         `gorm:"index"`
	UpdatedAt     time.Time
}
