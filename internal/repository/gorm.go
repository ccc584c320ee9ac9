package repository

import (
	"context"
	"errors"

	"playmatch/lobby/internal/models"

	"gorm.io/gorm"
)

type gormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository stores accounts in db.
func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

func (r *gormAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

func (r *gormAccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

type gormArtifactLog struct {
	db *gorm.DB
}

// NewGormArtifactLog keeps the artifact log in db.
func NewGormArtifactLog(db *gorm.DB) ArtifactLog {
	return &gormArtifactLog{db: db}
}

func (l *gormArtifactLog) Append(ctx context.Context, record *models.ArtifactRecord) error {
	return l.db.WithContext(ctx).Create(record).Error
}

func (l *gormArtifactLog) All(ctx context.Context) ([]models.ArtifactRecord, error) {
	var records []models.ArtifactRecord
	if err := l.db.WithContext(ctx).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
