package repository

import (
	"context"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// CasesRepository 病例报告Repository接口
type CasesRepository interface {
	// CreateCase 条件插入病例（按 event_hash 幂等）。
	// 并发相同插入只有一个赢家；冲突时返回已存在的病例且 created=false，不报错。
	CreateCase(ctx context.Context, c *domain.CaseReport) (created bool, result *domain.CaseReport, err error)

	// GetCase 按 case_id 获取病例
	GetCase(ctx context.Context, caseID string) (*domain.CaseReport, error)

	// ListCasesByPersonKey 按患者键列出病例
	ListCasesByPersonKey(ctx context.Context, personKey string) ([]*domain.CaseReport, error)

	// SetExtractionResult 写入结构化摘要并迁移 FLAGGED -> OMOP_EXTRACTED
	// （带状态守卫的 UPDATE；当前状态不是 FLAGGED 时返回错误）
	SetExtractionResult(ctx context.Context, caseID string, summary string) error

	// SetExtractionFailure 记录抽取失败（写入 extraction_error 并递增重试计数，
	// 不改变状态 —— 失败对病例可见而不只是日志）
	SetExtractionFailure(ctx context.Context, caseID string, errMsg string) error

	// PublishCase 发布评审门：OMOP_EXTRACTED 且 structured_summary 非空才允许迁移到 PUBLISHED
	PublishCase(ctx context.Context, caseID string) error
}
