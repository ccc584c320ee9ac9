package repository_test

import (
	"context"
	"testing"

	"playmatch/lobby/internal/database"
	"playmatch/lobby/internal/models"
	"playmatch/lobby/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive for the whole test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func accountRepos(t *testing.T) map[string]repository.AccountRepository {
	return map[string]repository.AccountRepository{
		"memory": repository.NewMemoryAccountRepository(),
		"gorm":   repository.NewGormAccountRepository(openSQLite(t)),
	}
}

func TestAccountRepository_CreateAndFind(t *testing.T) {
	for name, repo := range accountRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.FindByUsername(ctx, "alice")
			assert.ErrorIs(t, err, repository.ErrNotFound)

			require.NoError(t, repo.Create(ctx, &models.Account{Username: "alice", PasswordHash: "h1"}))

			found, err := repo.FindByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice", found.Username)
			assert.Equal(t, "h1", found.PasswordHash)
			assert.NotZero(t, found.ID)
		})
	}
}

func TestMemoryAccountRepository_Duplicate(t *testing.T) {
	repo := repository.NewMemoryAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Account{Username: "bob", PasswordHash: "x"}))
	err := repo.Create(ctx, &models.Account{Username: "bob", PasswordHash: "y"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestArtifactLog_AppendPreservesOrder(t *testing.T) {
	logs := map[string]repository.ArtifactLog{
		"memory": repository.NewMemoryArtifactLog(),
		"gorm":   repository.NewGormArtifactLog(openSQLite(t)),
	}
	for name, log := range logs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, log.Append(ctx, &models.ArtifactRecord{Name: "ttt", Publisher: "alice", Path: "ttt.1"}))
			require.NoError(t, log.Append(ctx, &models.ArtifactRecord{Name: "rps", Publisher: "bob", Path: "rps.1"}))
			require.NoError(t, log.Append(ctx, &models.ArtifactRecord{Name: "ttt", Publisher: "alice", Path: "ttt.2"}))

			records, err := log.All(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "ttt.1", records[0].Path)
			assert.Equal(t, "rps.1", records[1].Path)
			assert.Equal(t, "ttt.2", records[2].Path)
		})
	}
}
