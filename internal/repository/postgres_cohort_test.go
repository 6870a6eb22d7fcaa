package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockCohortDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCohortRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresCohortRepository(db)
	return db, mock, repo
}

func TestSelectCohortRows_ReturnsConsentedRows(t *testing.T) {
	db, mock, repo := setupMockCohortDB(t)
	defer db.Close()

	startDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"person_id", "gender_concept_id", "year_of_birth",
		"condition_start_date", "condition_source_value",
		"line_of_therapy_count", "wallet_address",
	}).
		AddRow(int64(1), 8532, 1958, startDate, "C45.9", 3, "5Q544fKrFoe6tsEbD7S8EmxGdNQ1zJq9urpw2NwqEULE").
		AddRow(int64(2), 8507, 1971, startDate, "C45.9", 1, nil)

	mock.ExpectQuery(`SELECT(.|\n)*FROM condition_occurrence`).
		WithArgs(int64(302849000)).
		WillReturnRows(rows)

	result, err := repo.SelectCohortRows(context.Background(), 302849000)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, int64(1), result[0].PersonID)
	assert.Equal(t, 3, result[0].LineOfTherapyCount)
	require.NotNil(t, result[0].WalletAddress)
	// 没有钱包的患者仍计入队列，但 WalletAddress 为空
	assert.Nil(t, result[1].WalletAddress)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectCohortRows_EmptyCohort(t *testing.T) {
	db, mock, repo := setupMockCohortDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT(.|\n)*FROM condition_occurrence`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{
			"person_id", "gender_concept_id", "year_of_birth",
			"condition_start_date", "condition_source_value",
			"line_of_therapy_count", "wallet_address",
		}))

	result, err := repo.SelectCohortRows(context.Background(), 999)

	require.NoError(t, err)
	assert.Empty(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestMeasurements_DefaultLimit(t *testing.T) {
	db, mock, repo := setupMockCohortDB(t)
	defer db.Close()

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT(.|\n)*FROM measurement`).
		WithArgs(int64(1), 5).
		WillReturnRows(sqlmock.NewRows([]string{"measurement_concept_id", "value_as_number", "measurement_date"}).
			AddRow(int64(85319), 1.0, date).
			AddRow(int64(10334), nil, date))

	result, err := repo.GetLatestMeasurements(context.Background(), 1, 0)

	require.NoError(t, err)
	require.Len(t, result, 2)
	require.NotNil(t, result[0].ValueAsNumber)
	assert.Equal(t, 1.0, *result[0].ValueAsNumber)
	assert.Nil(t, result[1].ValueAsNumber)

	require.NoError(t, mock.ExpectationsWereMet())
}
