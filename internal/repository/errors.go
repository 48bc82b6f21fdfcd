package repository

import "errors"

// Errors returned by repositories, checked with errors.Is
var (
	// ErrNotFound is returned when no entity matches the lookup
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before it is stored
	ErrInvalidEntity = errors.New("invalid entity")
)
