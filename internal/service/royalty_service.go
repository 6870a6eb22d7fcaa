package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/domain"
	rediscommon "github.com/raimp001/autocase-ai/internal/redis"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/royalty"
)

// 去重键前缀与保留时长（覆盖对账窗口）
const (
	royaltyDedupeKeyPrefix = "autocase:royalty:submitted:"
	royaltyDedupeTTL       = 7 * 24 * time.Hour
)

// RoyaltyService 分账执行服务：按 query_id 精确一次提交转账批次。
// 去重键先占后发；超时保留去重键（结果未知，重发可能双付），
// 确定性失败删除去重键放行重试。
type RoyaltyService struct {
	queries         repository.RweQueriesRepository
	ledger          BatchSubmitter
	redisClient     *rediscommon.Client
	platformWallet  string
	physicianWallet string
	logger          *zap.Logger
}

// NewRoyaltyService 创建分账服务
func NewRoyaltyService(
	queries repository.RweQueriesRepository,
	ledger BatchSubmitter,
	redisClient *rediscommon.Client,
	cfg config.RoyaltyConfig,
	logger *zap.Logger,
) *RoyaltyService {
	return &RoyaltyService{
		queries:         queries,
		ledger:          ledger,
		redisClient:     redisClient,
		platformWallet:  cfg.PlatformWallet,
		physicianWallet: cfg.PhysicianWallet,
		logger:          logger,
	}
}

// Distribute 为已落库的查询审计记录执行分账。
// 幂等：同一 query_id 只会有一个批次到达账本。本函数设计为在请求
// 响应之后异步调用，结果只体现在审计记录的 attestation 字段上。
func (s *RoyaltyService) Distribute(ctx context.Context, queryID string, split royalty.Split, patientWallets []string) {
	dedupeKey := royaltyDedupeKeyPrefix + queryID

	acquired, err := s.redisClient.SetNX(ctx, dedupeKey, "1", royaltyDedupeTTL).Result()
	if err != nil {
		s.logger.Error("Failed to acquire royalty dedupe key, skipping distribution",
			zap.String("query_id", queryID),
			zap.Error(err),
		)
		return
	}
	if !acquired {
		// 同一查询的批次已提交或正在提交
		s.logger.Warn("Royalty batch already submitted for query, skipping",
			zap.String("query_id", queryID),
		)
		return
	}

	transfers := royalty.BuildTransfers(split, s.platformWallet, s.physicianWallet, patientWallets)
	memo := royalty.Memo(queryID, split.PatientCount)

	txRef, err := s.ledger.SubmitBatch(ctx, transfers, memo)

	switch {
	case err == nil:
		if uerr := s.queries.SetAttestation(ctx, queryID, &txRef, domain.AttestationConfirmed); uerr != nil {
			s.logger.Error("Failed to record royalty attestation ref",
				zap.String("query_id", queryID),
				zap.Error(uerr),
			)
		}
		s.logger.Info("Royalty batch confirmed",
			zap.String("query_id", queryID),
			zap.String("tx_ref", txRef),
			zap.Int("transfers", len(transfers)),
		)

	case errors.Is(err, ErrLedgerTimeout):
		// 超时：批次可能已落账。保留去重键阻止重发，标记 UNKNOWN 等人工对账
		if uerr := s.queries.SetAttestation(ctx, queryID, nil, domain.AttestationUnknown); uerr != nil {
			s.logger.Error("Failed to mark royalty attestation unknown",
				zap.String("query_id", queryID),
				zap.Error(uerr),
			)
		}
		s.logger.Error("Royalty batch submission timed out, manual reconciliation required",
			zap.String("query_id", queryID),
		)

	default:
		// 确定性失败：账本保证批次未落账，删除去重键放行后续重试
		if derr := s.redisClient.Del(ctx, dedupeKey).Err(); derr != nil {
			s.logger.Error("Failed to release royalty dedupe key",
				zap.String("query_id", queryID),
				zap.Error(derr),
			)
		}
		s.logger.Error("Royalty batch submission failed, retry permitted",
			zap.String("query_id", queryID),
			zap.Error(err),
		)
	}
}
