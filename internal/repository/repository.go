// Package repository persists finalized provisioning records.
package repository

import "context"

// Reader is the lookup half of a Repository.
type Reader[T any, ID comparable] interface {
	// FindByID returns ErrNotFound when no entity has the ID
	FindByID(ctx context.Context, id ID) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
}

// Writer is the mutating half of a Repository.
type Writer[T any, ID comparable] interface {
	// Save creates the entity when its ID is the zero value and replaces it
	// otherwise. The stored entity is returned with its ID set.
	Save(ctx context.Context, entity T) (T, error)

	// DeleteByID returns ErrNotFound when no entity has the ID
	DeleteByID(ctx context.Context, id ID) error
}

// Repository is the storage contract shared by every entity kind.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}
