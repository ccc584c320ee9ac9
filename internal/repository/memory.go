package repository

import (
	"context"
	"sync"
	"time"

	"playmatch/lobby/internal/models"
)

type memoryAccountRepository struct {
	mu       sync.RWMutex
	nextID   uint
	accounts map[string]models.Account
}

// NewMemoryAccountRepository keeps accounts in process memory only.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]models.Account)}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Username]; ok {
		return ErrDuplicateEntry
	}
	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.Username] = *account
	return nil
}

func (r *memoryAccountRepository) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

type memoryArtifactLog struct {
	mu      sync.RWMutex
	records []models.ArtifactRecord
}

// NewMemoryArtifactLog keeps the artifact log in process memory only.
func NewMemoryArtifactLog() ArtifactLog {
	return &memoryArtifactLog{}
}

func (l *memoryArtifactLog) Append(_ context.Context, record *models.ArtifactRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record.ID = uint(len(l.records) + 1)
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	l.records = append(l.records, *record)
	return nil
}

func (l *memoryArtifactLog) All(_ context.Context) ([]models.ArtifactRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ArtifactRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}
