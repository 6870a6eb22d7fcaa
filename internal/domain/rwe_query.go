package domain

import "time"

// RweQuery 付费队列查询审计记录（对应 rwe_queries 表，追加写入）
// 创建后不再更新，只允许补写迟到的 attestation_ref / attestation_status。
type RweQuery struct {
	QueryID string `db:"query_id"` // UUID, PRIMARY KEY

	ClientName string `db:"client_name"` // VARCHAR(100), NOT NULL - B2B 客户名
	ConceptID  int64  `db:"concept_id"`  // BIGINT, NOT NULL - SNOMED 概念

	// 本次查询支付总额（结算币种最小单位）
	RequestedAmount int64 `db:"requested_amount"` // BIGINT, NOT NULL

	CohortSize       int `db:"cohort_size"`       // INTEGER, NOT NULL - 入选患者数
	BeneficiaryCount int `db:"beneficiary_count"` // INTEGER, NOT NULL - 有钱包的受益患者数

	// 分账结果（创建时随审计记录一并写入）
	PlatformShare   int64 `db:"platform_share"`    // BIGINT, NOT NULL
	PhysicianShare  int64 `db:"physician_share"`   // BIGINT, NOT NULL
	PerPatientShare int64 `db:"per_patient_share"` // BIGINT, NOT NULL
	RemainderShare  int64 `db:"remainder_share"`   // BIGINT, NOT NULL - 未分配余额，显式报告

	PaymentRef        *string `db:"payment_ref"`        // VARCHAR(128), nullable - 支付网关凭据
	AttestationRef    *string `db:"attestation_ref"`    // VARCHAR(128), nullable
	AttestationStatus string  `db:"attestation_status"` // VARCHAR(10), NOT NULL - PENDING/CONFIRMED/UNKNOWN

	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}
