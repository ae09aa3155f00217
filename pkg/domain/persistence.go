package domain

import "context"

// SessionFactory hands out per-call sessions against a durable backend. It is the
// store client the gateway is constructed with; pooling, if any, lives behind it.
type SessionFactory[E Entity] interface {
	OpenSession(ctx context.Context) (Session[E], error)
}

// Session is a short-lived handle to a single unit of work. A session is owned by
// exactly one caller and must be closed exactly once.
//
// Reads may run without a transaction. Mutations require one started through
// BeginTransaction and fail with ErrNoTransaction otherwise.
type Session[E Entity] interface {
	// BeginTransaction starts the transaction bound to this session. Only one
	// transaction may be active at a time.
	BeginTransaction(ctx context.Context) (Transaction, error)
	// Get loads an entity by key. A missing entity is reported as (zero, false, nil).
	Get(ctx context.Context, id int64) (E, bool, error)
	// SaveOrUpdate inserts the entity when its key is unset, assigning the key,
	// and updates it otherwise. Updating a key with no stored record fails with
	// ErrStaleEntity.
	SaveOrUpdate(ctx context.Context, entity E) error
	// Delete removes the stored record for the entity's key. Deleting a key with
	// no stored record fails with ErrStaleEntity.
	Delete(ctx context.Context, entity E) error
	// QueryAll returns every stored entity in backend-defined order.
	QueryAll(ctx context.Context) ([]E, error)
	// Close releases the session. It rolls back an unfinished transaction and is
	// safe to call more than once.
	Close() error
}

// Transaction is bound 1:1 to a Session.
//
// Rollback after the transaction has finished is a no-op returning nil; Commit after
// it has finished returns ErrTransactionDone.
type Transaction interface {
	Commit() error
	Rollback() error
}
