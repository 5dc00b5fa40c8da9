package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-rewards-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	}
}

func TestConfigurationRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow(models.PolicyKeyBaseMultiplier, "0.1", "DECIMAL", nil, "admin-1", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(models.PolicyKeyBaseMultiplier).
		WillReturnRows(rows)

	cfg, err := repo.Get(context.Background(), models.PolicyKeyBaseMultiplier)
	require.NoError(t, err)
	assert.Equal(t, "0.1", cfg.Value)
	assert.Equal(t, models.ConfigurationTypeDecimal, cfg.Type)
}

func TestConfigurationRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectQuery("SELECT key, value").
		WithArgs(models.PolicyKeyBaseMultiplier).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), models.PolicyKeyBaseMultiplier)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs(models.PolicyKeyBaseMultiplier, "0.2", "DECIMAL", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	updatedBy := "admin"
	cfg := &models.Configuration{
		Key:       models.PolicyKeyBaseMultiplier,
		Value:     "0.2",
		Type:      models.ConfigurationTypeDecimal,
		UpdatedBy: &updatedBy,
	}
	require.NoError(t, repo.Upsert(context.Background(), cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func TestConfigurationRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectExec("ON CONFLICT \\(key\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(key\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cfg := &models.Configuration{Key: models.PolicyKeyBaseMultiplier, Value: "0.1", Type: models.ConfigurationTypeDecimal}
	inserted, err := repo.InsertIfAbsent(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, inserted)
}
