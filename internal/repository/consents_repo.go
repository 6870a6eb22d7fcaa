package repository

import (
	"context"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// FlaggedCase 授予同意时被连带迁移到 FLAGGED 的病例
// （携带叙述文本，便于直接入队抽取任务）
type FlaggedCase struct {
	CaseID       string
	EmrNarrative string
}

// ConsentsRepository 患者同意Repository接口
type ConsentsRepository interface {
	// UpsertGranted 写入/覆盖授予记录。
	// 当记录满足入选条件（GRANTED 且 opt-in）时，同一事务内将该患者所有
	// CONSENT_PENDING 病例迁移到 FLAGGED，并返回被迁移的病例（同意写入与
	// 病例迁移原子提交）。
	UpsertGranted(ctx context.Context, rec *domain.ConsentRecord) (*domain.ConsentRecord, []FlaggedCase, error)

	// GetByPersonKey 按患者键获取同意记录
	GetByPersonKey(ctx context.Context, personKey string) (*domain.ConsentRecord, error)

	// Revoke 撤销同意：置 REVOKED 并打 revoked_at 时间戳。
	// 不清除既有字段（撤销是覆盖层而非删除，保留审计轨迹）。
	Revoke(ctx context.Context, personKey string) (*domain.ConsentRecord, error)

	// SetAttestation 补写链上存证结果（ref 可为 nil，status 三态）
	SetAttestation(ctx context.Context, consentID string, ref *string, status string) error
}
