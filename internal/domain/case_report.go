package domain

import "time"

// 案例状态（状态机见 CanTransition）
const (
	CaseStatusConsentPending = "CONSENT_PENDING" // 已检出罕见病例，等待患者知情同意
	CaseStatusFlagged        = "FLAGGED"         // 同意已授予，等待 OMOP 抽取
	CaseStatusOmopExtracted  = "OMOP_EXTRACTED"  // 结构化数据已写入
	CaseStatusPublished      = "PUBLISHED"       // 终态，可参与付费队列查询
)

// CaseReport 病例报告领域模型（对应 case_reports 表）
type CaseReport struct {
	// 主键
	CaseID string `db:"case_id"` // UUID, PRIMARY KEY（由持久层生成）

	// 患者关联
	PersonID  int64  `db:"person_id"`  // BIGINT, NOT NULL - OMOP person 外键
	PersonKey string `db:"person_key"` // VARCHAR(32), NOT NULL - 去标识化键，创建后不可变

	// 幂等键：入站事件原始内容的 SHA-256（重复投递不产生新病例）
	EventHash string `db:"event_hash"` // CHAR(64), NOT NULL, UNIQUE

	// 临床叙述（截断至 10000 字符）
	EmrNarrative string `db:"emr_narrative"` // TEXT, NOT NULL

	// 罕见病标记
	IsRareFlag     bool   `db:"is_rare_flag"`     // BOOLEAN, NOT NULL
	RareFlagReason string `db:"rare_flag_reason"` // TEXT, NOT NULL - 创建时写入，不可变

	// 状态机
	Status string `db:"status"` // VARCHAR(20), NOT NULL

	// 抽取结果
	StructuredSummary *string `db:"structured_summary"` // TEXT, nullable - 抽取完成后一次性写入
	ExtractionError   *string `db:"extraction_error"`   // TEXT, nullable - 最近一次抽取失败原因
	ExtractionRetries int     `db:"extraction_retries"` // INTEGER, NOT NULL DEFAULT 0

	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}

// caseTransitions 合法状态迁移表
var caseTransitions = map[string]string{
	CaseStatusConsentPending: CaseStatusFlagged,
	CaseStatusFlagged:        CaseStatusOmopExtracted,
	CaseStatusOmopExtracted:  CaseStatusPublished,
}

// CanTransition 判断从 from 到 to 是否为合法迁移
func CanTransition(from, to string) bool {
	next, ok := caseTransitions[from]
	return ok && next == to
}

// IsTerminal PUBLISHED 为终态
func IsTerminal(status string) bool {
	return status == CaseStatusPublished
}
