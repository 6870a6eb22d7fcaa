package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// PostgresPersonsRepository OMOP person 及临床事实表Repository实现
type PostgresPersonsRepository struct {
	db *sql.DB
}

// NewPostgresPersonsRepository 创建 person Repository
func NewPostgresPersonsRepository(db *sql.DB) *PostgresPersonsRepository {
	return &PostgresPersonsRepository{db: db}
}

// 确保实现了接口
var _ PersonsRepository = (*PostgresPersonsRepository)(nil)

// UpsertPerson 按去标识化键 upsert。
// 默认人口学字段（性别 8521 未知 / 出生年 1970）由后续临床抽取修正。
func (r *PostgresPersonsRepository) UpsertPerson(ctx context.Context, personSourceValue string) (*domain.Person, error) {
	if personSourceValue == "" {
		return nil, fmt.Errorf("person_source_value is required")
	}

	// DO UPDATE 是为了让 RETURNING 在冲突时也返回行（字段值不变）
	query := `
		INSERT INTO persons (gender_concept_id, year_of_birth, race_concept_id,
		                     ethnicity_concept_id, person_source_value)
		VALUES (8521, 1970, 0, 0, $1)
		ON CONFLICT (person_source_value)
		DO UPDATE SET person_source_value = EXCLUDED.person_source_value
		RETURNING person_id, gender_concept_id, year_of_birth, race_concept_id,
		          ethnicity_concept_id, person_source_value
	`

	var p domain.Person
	err := r.db.QueryRowContext(ctx, query, personSourceValue).Scan(
		&p.PersonID,
		&p.GenderConceptID,
		&p.YearOfBirth,
		&p.RaceConceptID,
		&p.EthnicityConceptID,
		&p.PersonSourceValue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert person: %w", err)
	}

	return &p, nil
}

// GetPersonBySourceValue 按去标识化键查找
func (r *PostgresPersonsRepository) GetPersonBySourceValue(ctx context.Context, personSourceValue string) (*domain.Person, error) {
	if personSourceValue == "" {
		return nil, domain.NewNotFoundError("person", personSourceValue)
	}

	query := `
		SELECT person_id, gender_concept_id, year_of_birth, race_concept_id,
		       ethnicity_concept_id, person_source_value
		FROM persons
		WHERE person_source_value = $1
	`

	var p domain.Person
	err := r.db.QueryRowContext(ctx, query, personSourceValue).Scan(
		&p.PersonID,
		&p.GenderConceptID,
		&p.YearOfBirth,
		&p.RaceConceptID,
		&p.EthnicityConceptID,
		&p.PersonSourceValue,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("person", personSourceValue)
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	return &p, nil
}

// InsertCondition 写入 condition_occurrence
func (r *PostgresPersonsRepository) InsertCondition(ctx context.Context, c *domain.ConditionOccurrence) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO condition_occurrence (person_id, condition_concept_id,
			condition_start_date, condition_end_date, condition_type_concept_id,
			condition_source_value, condition_status_concept_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.PersonID, c.ConditionConceptID, c.ConditionStartDate, nullTime(c.ConditionEndDate),
		c.ConditionTypeConceptID, c.ConditionSourceValue, nullInt64(c.ConditionStatusConceptID))
	if err != nil {
		return fmt.Errorf("failed to insert condition occurrence: %w", err)
	}
	return nil
}

// InsertDrug 写入 drug_exposure
func (r *PostgresPersonsRepository) InsertDrug(ctx context.Context, d *domain.DrugExposure) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drug_exposure (person_id, drug_concept_id,
			drug_exposure_start_date, drug_exposure_end_date, drug_type_concept_id,
			drug_source_value, route_concept_id, line_of_therapy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.PersonID, d.DrugConceptID, d.DrugExposureStartDate, nullTime(d.DrugExposureEndDate),
		d.DrugTypeConceptID, d.DrugSourceValue, nullInt64(d.RouteConceptID), nullInt(d.LineOfTherapy))
	if err != nil {
		return fmt.Errorf("failed to insert drug exposure: %w", err)
	}
	return nil
}

// InsertMeasurement 写入 measurement
func (r *PostgresPersonsRepository) InsertMeasurement(ctx context.Context, m *domain.Measurement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO measurement (person_id, measurement_concept_id, measurement_date,
			measurement_type_concept_id, value_as_number, value_as_concept_id,
			unit_concept_id, measurement_source_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.PersonID, m.MeasurementConceptID, m.MeasurementDate, m.MeasurementTypeConceptID,
		nullFloat64(m.ValueAsNumber), nullInt64(m.ValueAsConceptID), nullInt64(m.UnitConceptID),
		m.MeasurementSourceValue)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// nullable 参数辅助
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullFloat64(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
