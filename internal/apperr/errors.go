package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrKeyReuse means an idempotency key was replayed with a different
	// request body than the one it was first recorded with.
	ErrKeyReuse = errors.New("idempotency key reused with different payload")
	// ErrStale means a ledger update lost against a newer committed state
	// and must be re-driven from a fresh read.
	ErrStale = errors.New("stale precondition")
)
