package ledger

import "errors"

// Business errors. They are returned verbatim to the caller and matched with errors.Is.
var (
	ErrUnknownPlan            = errors.New("unknown plan amount")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrBelowMinimumWithdrawal = errors.New("amount below minimum withdrawal")
	ErrInvalidAddress         = errors.New("invalid wallet address")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidStatus          = errors.New("invalid transaction status")
	ErrMissingTxID            = errors.New("deposit requires a transaction hash")
	ErrNotFound               = errors.New("not found")
)

// Store errors
var (
	// ErrConflict means the row changed between read and write (stale version or status).
	ErrConflict  = errors.New("concurrent modification detected")
	// ErrDuplicate means an insert hit a unique key.
	ErrDuplicate = errors.New("duplicate key")
)
