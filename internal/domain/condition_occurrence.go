package domain

import "time"

// OMOP type concept：EHR 就诊记录
const ConditionTypeEHREncounter = 32020

// ConditionOccurrence OMOP CDM condition_occurrence 表领域模型
type ConditionOccurrence struct {
	ConditionOccurrenceID int64 `db:"condition_occurrence_id"` // BIGSERIAL, PRIMARY KEY

	PersonID int64 `db:"person_id"` // BIGINT, NOT NULL

	ConditionConceptID int64      `db:"condition_concept_id"` // BIGINT, NOT NULL - SNOMED-CT
	ConditionStartDate time.Time  `db:"condition_start_date"` // DATE, NOT NULL
	ConditionEndDate   *time.Time `db:"condition_end_date"`   // DATE, nullable

	ConditionTypeConceptID   int64  `db:"condition_type_concept_id"`   // BIGINT, NOT NULL
	ConditionSourceValue     string `db:"condition_source_value"`      // VARCHAR(100), NOT NULL - ICD-10/ICD-O 源码
	ConditionStatusConceptID *int64 `db:"condition_status_concept_id"` // BIGINT, nullable - 原发 4033240 / 转移 4205430
}
