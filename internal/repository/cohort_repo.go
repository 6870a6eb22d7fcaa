package repository

import (
	"context"
	"time"
)

// CohortRow condition_occurrence × person × consent 连接结果的一行。
// 只在 Cohort Selector 投影期间存在，不落库。钱包地址仅供服务层收集
// 受益人集合，绝不进入对外投影。
type CohortRow struct {
	PersonID             int64
	GenderConceptID      int
	YearOfBirth          int
	ConditionStartDate   time.Time
	ConditionSourceValue string
	LineOfTherapyCount   int
	WalletAddress        *string
}

// MeasurementValue 队列投影中的检验值
type MeasurementValue struct {
	ConceptID     int64     `json:"conceptId"`
	ValueAsNumber *float64  `json:"value,omitempty"`
	Date          time.Time `json:"date"`
}

// CohortRepository 付费队列查询Repository接口
type CohortRepository interface {
	// SelectCohortRows 按 SNOMED 概念选取队列。
	// 过滤条件固定为 consent.status=GRANTED 且 rwe_opt_in=true：
	// REVOKED / PENDING 患者即使临床数据匹配也被排除。
	SelectCohortRows(ctx context.Context, conceptID int64) ([]CohortRow, error)

	// GetLatestMeasurements 取某患者最近的 limit 条检验值（按日期倒序）
	GetLatestMeasurements(ctx context.Context, personID int64, limit int) ([]MeasurementValue, error)
}
