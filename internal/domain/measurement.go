package domain

import "time"

// OMOP type concept：实验室结果
const MeasurementTypeLabResult = 32856

// Measurement OMOP CDM measurement 表领域模型
type Measurement struct {
	MeasurementID int64 `db:"measurement_id"` // BIGSERIAL, PRIMARY KEY

	PersonID int64 `db:"person_id"` // BIGINT, NOT NULL

	MeasurementConceptID int64     `db:"measurement_concept_id"` // BIGINT, NOT NULL - LOINC
	MeasurementDate      time.Time `db:"measurement_date"`       // DATE, NOT NULL

	MeasurementTypeConceptID int64    `db:"measurement_type_concept_id"` // BIGINT, NOT NULL
	ValueAsNumber            *float64 `db:"value_as_number"`             // NUMERIC, nullable
	ValueAsConceptID         *int64   `db:"value_as_concept_id"`         // BIGINT, nullable - 阳性 9191 / 阴性 9189
	UnitConceptID            *int64   `db:"unit_concept_id"`             // BIGINT, nullable
	MeasurementSourceValue   string   `db:"measurement_source_value"`    // VARCHAR(100), NOT NULL
}
