package repository

import (
	"context"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// RweQueriesRepository 查询审计记录Repository接口（追加写入）
type RweQueriesRepository interface {
	// CreateQuery 写入审计记录，返回持久层分配的 query_id
	CreateQuery(ctx context.Context, q *domain.RweQuery) (string, error)

	// GetQuery 按 query_id 获取审计记录
	GetQuery(ctx context.Context, queryID string) (*domain.RweQuery, error)

	// SetAttestation 补写迟到的存证结果（创建后唯一允许的更新）
	SetAttestation(ctx context.Context, queryID string, ref *string, status string) error
}
