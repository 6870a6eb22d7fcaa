package domain

import "time"

// OMOP type concept：EHR 医嘱
const DrugTypeEHROrder = 32817

// DrugExposure OMOP CDM drug_exposure 表领域模型
type DrugExposure struct {
	DrugExposureID int64 `db:"drug_exposure_id"` // BIGSERIAL, PRIMARY KEY

	PersonID int64 `db:"person_id"` // BIGINT, NOT NULL

	DrugConceptID         int64      `db:"drug_concept_id"`          // BIGINT, NOT NULL - RxNorm/HemOnc
	DrugExposureStartDate time.Time  `db:"drug_exposure_start_date"` // DATE, NOT NULL
	DrugExposureEndDate   *time.Time `db:"drug_exposure_end_date"`   // DATE, nullable

	DrugTypeConceptID int64  `db:"drug_type_concept_id"` // BIGINT, NOT NULL
	DrugSourceValue   string `db:"drug_source_value"`    // VARCHAR(100), NOT NULL - 病历中的药品名
	RouteConceptID    *int64 `db:"route_concept_id"`     // BIGINT, nullable
	LineOfTherapy     *int   `db:"line_of_therapy"`      // INTEGER, nullable - 1L/2L 治疗线
}
