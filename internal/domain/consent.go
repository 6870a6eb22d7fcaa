package domain

import "time"

// 同意状态
const (
	ConsentStatusGranted = "GRANTED"
	ConsentStatusRevoked = "REVOKED"
	ConsentStatusPending = "PENDING"
)

// 存证状态（三态：成功 / 未完成可重试 / 超时未知）
const (
	AttestationPending   = "PENDING"   // 尚未上链（未尝试或失败，可重试）
	AttestationConfirmed = "CONFIRMED" // 已上链，attestation_ref 有效
	AttestationUnknown   = "UNKNOWN"   // 提交超时，结果未知，不可盲目重试
)

// ConsentRecord 患者同意记录（对应 consents 表，每位患者一条有效记录）
type ConsentRecord struct {
	ConsentID string `db:"consent_id"` // UUID, PRIMARY KEY

	// 去标识化患者键（唯一）
	PersonKey string `db:"person_key"` // VARCHAR(32), NOT NULL, UNIQUE

	Status   string `db:"status"`     // VARCHAR(10), NOT NULL - GRANTED/REVOKED/PENDING
	OptInRwe bool   `db:"rwe_opt_in"` // BOOLEAN, NOT NULL - 是否授权真实世界证据研究
	Tier     int    `db:"tier"`       // INTEGER, NOT NULL - 披露粒度等级 1-3

	PolicyVersion string `db:"policy_version"` // VARCHAR(20), NOT NULL
	ConsentText   string `db:"consent_text"`   // TEXT, NOT NULL

	// 收款钱包（支付路由元数据，不参与 content_hash）
	WalletAddress *string `db:"wallet_address"` // VARCHAR(64), nullable

	// 最近一次授予事件的完整性证明（每次授予重新计算，不原地修改）
	ContentHash string `db:"content_hash"` // CHAR(64), NOT NULL

	// 链上存证
	AttestationRef    *string `db:"attestation_ref"`    // VARCHAR(128), nullable - 存证成功前为 NULL
	AttestationStatus string  `db:"attestation_status"` // VARCHAR(10), NOT NULL

	SignedAt  time.Time  `db:"signed_at"`  // TIMESTAMPTZ, NOT NULL
	RevokedAt *time.Time `db:"revoked_at"` // TIMESTAMPTZ, nullable - 非空当且仅当 status=REVOKED

	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}

// Eligible 是否满足队列入选条件（GRANTED 且 opt-in）
func (c *ConsentRecord) Eligible() bool {
	return c.Status == ConsentStatusGranted && c.OptInRwe
}
