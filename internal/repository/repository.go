// Package repository persists lobby accounts and the game artifact log.
package repository

import (
	"context"
	"errors"

	"playmatch/lobby/internal/models"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means a unique constraint rejected the write.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// AccountRepository stores registered accounts keyed by username.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
}

// ArtifactLog is the append-only durable log behind the artifact index.
type ArtifactLog interface {
	Append(ctx context.Context, record *models.ArtifactRecord) error
	// All returns every record in insertion order.
	All(ctx context.Context) ([]models.ArtifactRecord, error)
}
