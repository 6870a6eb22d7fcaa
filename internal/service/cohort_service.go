package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
)

// 每位患者随队列投影输出的最近检验值条数
const latestMeasurementLimit = 5

// CohortEntry 队列投影中的单个患者（彻底去标识化：
// 只有队列内序号，没有患者键、钱包地址或任何源端标识）
type CohortEntry struct {
	CohortIndex          int                           `json:"cohortIndex"`
	GenderConceptID      int                           `json:"genderConceptId"`
	YearOfBirth          int                           `json:"yearOfBirth"`
	ConditionStartDate   string                        `json:"conditionStartDate"`
	ConditionSourceValue string                        `json:"conditionSourceValue"`
	LineOfTherapyCount   int                           `json:"lineOfTherapyCount"`
	LatestMeasurements   []repository.MeasurementValue `json:"latestMeasurements"`
}

// CohortSelection 队列选取结果。
// Entries 面向付费方；BeneficiaryWallets 面向分账引擎，两者不得混流。
type CohortSelection struct {
	Entries            []CohortEntry
	BeneficiaryWallets []string
	CohortSize         int
}

// CohortService 付费队列选取服务
type CohortService struct {
	cohort repository.CohortRepository
	logger *zap.Logger
}

// NewCohortService 创建队列服务
func NewCohortService(cohort repository.CohortRepository, logger *zap.Logger) *CohortService {
	return &CohortService{
		cohort: cohort,
		logger: logger,
	}
}

// SelectCohort 按 SNOMED 概念选取合规队列。
// 空队列是合法结果（返回零条目，不报错）；受益人钱包只收集
// 填写了收款地址的患者，缺失钱包不影响其进入投影。
func (s *CohortService) SelectCohort(ctx context.Context, conceptID int64) (*CohortSelection, error) {
	if conceptID <= 0 {
		return nil, domain.NewValidationError("conceptId", "must be a positive OMOP concept ID")
	}

	rows, err := s.cohort.SelectCohortRows(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	selection := &CohortSelection{
		Entries:            make([]CohortEntry, 0, len(rows)),
		BeneficiaryWallets: make([]string, 0, len(rows)),
	}

	for i, row := range rows {
		measurements, err := s.cohort.GetLatestMeasurements(ctx, row.PersonID, latestMeasurementLimit)
		if err != nil {
			return nil, err
		}
		if measurements == nil {
			measurements = []repository.MeasurementValue{}
		}

		selection.Entries = append(selection.Entries, CohortEntry{
			CohortIndex:          i,
			GenderConceptID:      row.GenderConceptID,
			YearOfBirth:          row.YearOfBirth,
			ConditionStartDate:   row.ConditionStartDate.Format(time.DateOnly),
			ConditionSourceValue: row.ConditionSourceValue,
			LineOfTherapyCount:   row.LineOfTherapyCount,
			LatestMeasurements:   measurements,
		})

		if row.WalletAddress != nil && *row.WalletAddress != "" {
			selection.BeneficiaryWallets = append(selection.BeneficiaryWallets, *row.WalletAddress)
		}
	}

	selection.CohortSize = len(selection.Entries)

	s.logger.Info("Cohort selected",
		zap.Int64("concept_id", conceptID),
		zap.Int("cohort_size", selection.CohortSize),
		zap.Int("beneficiaries", len(selection.BeneficiaryWallets)),
	)

	return selection, nil
}
