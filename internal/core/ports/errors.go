package ports

import "errors"

// Storage failure classes. Adapters wrap driver errors with one of these so
// services can decide between retrying, re-reading and surfacing.
var (
	// ErrConflict marks a serialization failure, deadlock or lock timeout.
	// The whole unit may be re-executed from its read step.
	ErrConflict = errors.New("storage: concurrency conflict")
	// ErrDuplicate marks a unique-constraint violation.
	ErrDuplicate = errors.New("storage: duplicate key")
	// ErrUnavailable marks a connection-level failure.
	ErrUnavailable = errors.New("storage: unavailable")
)
