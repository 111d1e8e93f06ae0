package repository

import "errors"

var (
	// ErrTokenExists is returned when a bulk insert collides with an
	// already-issued redeem token.
	ErrTokenExists = errors.New("redeem token already exists")
)
