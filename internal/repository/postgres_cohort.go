package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCohortRepository 付费队列查询Repository实现
type PostgresCohortRepository struct {
	db *sql.DB
}

// NewPostgresCohortRepository 创建队列查询Repository
func NewPostgresCohortRepository(db *sql.DB) *PostgresCohortRepository {
	return &PostgresCohortRepository{db: db}
}

// 确保实现了接口
var _ CohortRepository = (*PostgresCohortRepository)(nil)

// SelectCohortRows 按 SNOMED 概念选取已同意队列
func (r *PostgresCohortRepository) SelectCohortRows(ctx context.Context, conceptID int64) ([]CohortRow, error) {
	query := `
		SELECT
			p.person_id,
			p.gender_concept_id,
			p.year_of_birth,
			co.condition_start_date,
			co.condition_source_value,
			(SELECT COUNT(*) FROM drug_exposure d WHERE d.person_id = p.person_id) AS line_of_therapy_count,
			c.wallet_address
		FROM condition_occurrence co
		JOIN persons p ON p.person_id = co.person_id
		JOIN consents c ON c.person_key = p.person_source_value
		WHERE co.condition_concept_id = $1
		  AND c.status = 'GRANTED'
		  AND c.rwe_opt_in = true
		ORDER BY co.condition_start_date, p.person_id
	`

	rows, err := r.db.QueryContext(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to select cohort: %w", err)
	}
	defer rows.Close()

	var result []CohortRow
	for rows.Next() {
		var row CohortRow
		var wallet sql.NullString
		if err := rows.Scan(
			&row.PersonID,
			&row.GenderConceptID,
			&row.YearOfBirth,
			&row.ConditionStartDate,
			&row.ConditionSourceValue,
			&row.LineOfTherapyCount,
			&wallet,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cohort row: %w", err)
		}
		if wallet.Valid {
			row.WalletAddress = &wallet.String
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// GetLatestMeasurements 取某患者最近的检验值
func (r *PostgresCohortRepository) GetLatestMeasurements(ctx context.Context, personID int64, limit int) ([]MeasurementValue, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT measurement_concept_id, value_as_number, measurement_date
		FROM measurement
		WHERE person_id = $1
		ORDER BY measurement_date DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest measurements: %w", err)
	}
	defer rows.Close()

	var result []MeasurementValue
	for rows.Next() {
		var m MeasurementValue
		var value sql.NullFloat64
		if err := rows.Scan(&m.ConceptID, &value, &m.Date); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if value.Valid {
			m.ValueAsNumber = &value.Float64
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
