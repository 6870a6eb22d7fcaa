package repository

import (
	"context"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// PersonsRepository OMOP person 及临床事实表Repository接口
type PersonsRepository interface {
	// UpsertPerson 按去标识化键 upsert（幂等：重复投递不产生新 person）
	UpsertPerson(ctx context.Context, personSourceValue string) (*domain.Person, error)

	// GetPersonBySourceValue 按去标识化键查找
	GetPersonBySourceValue(ctx context.Context, personSourceValue string) (*domain.Person, error)

	// InsertCondition 写入 condition_occurrence
	InsertCondition(ctx context.Context, c *domain.ConditionOccurrence) error

	// InsertDrug 写入 drug_exposure
	InsertDrug(ctx context.Context, d *domain.DrugExposure) error

	// InsertMeasurement 写入 measurement
	InsertMeasurement(ctx context.Context, m *domain.Measurement) error
}
