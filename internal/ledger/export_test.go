package ledger

const MaxConflictRetries = maxConflictRetries
