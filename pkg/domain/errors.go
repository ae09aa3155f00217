package domain

import "errors"

// Sentinel errors shared by every session provider.
var (
	ErrSessionClosed     = errors.New("session closed")
	ErrNoTransaction     = errors.New("no active transaction")
	ErrTransactionActive = errors.New("transaction already active")
	ErrTransactionDone   = errors.New("transaction already finished")
	// ErrStaleEntity reports an update whose key has no stored record.
	ErrStaleEntity = errors.New("stale entity: no stored record for key")
)
