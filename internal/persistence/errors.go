package persistence

import "errors"

var (
	// ErrPersistenceDisabled is returned by operations that cannot
	// degrade silently when no store connection was established.
	ErrPersistenceDisabled = errors.New("persistence is disabled")
)
