package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/royalty"
)

// ErrLedgerTimeout 提交超时：结果未知，既不能当成功也不能当失败处理
var ErrLedgerTimeout = errors.New("ledger submission timed out: result unknown")

// Attester 存证能力（单条备注，无转账）
type Attester interface {
	Attest(ctx context.Context, memo string) (string, error)
}

// BatchSubmitter 原子批次提交能力（转账 + 备注一起提交或一起失败）
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, transfers []royalty.Transfer, memo string) (string, error)
}

// LedgerClient 分布式账本中继服务客户端。
// 账本协作方保证批次原子性：部分提交在其侧不存在，这里任何非超时错误
// 都意味着整批未落账。
type LedgerClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewLedgerClient 创建账本客户端
func NewLedgerClient(cfg config.LedgerConfig, logger *zap.Logger) *LedgerClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &LedgerClient{
		httpClient: client,
		logger:     logger,
	}
}

var (
	_ Attester       = (*LedgerClient)(nil)
	_ BatchSubmitter = (*LedgerClient)(nil)
)

type ledgerBatchRequest struct {
	Transfers []royalty.Transfer `json:"transfers,omitempty"`
	Memo      string             `json:"memo"`
}

type ledgerBatchResponse struct {
	TxRef string `json:"txRef"`
}

// Attest 存证单条备注（无转账），返回链上交易引用
func (c *LedgerClient) Attest(ctx context.Context, memo string) (string, error) {
	return c.submit(ctx, ledgerBatchRequest{Memo: memo})
}

// SubmitBatch 原子提交转账批次和审计备注，返回链上交易引用
func (c *LedgerClient) SubmitBatch(ctx context.Context, transfers []royalty.Transfer, memo string) (string, error) {
	return c.submit(ctx, ledgerBatchRequest{Transfers: transfers, Memo: memo})
}

func (c *LedgerClient) submit(ctx context.Context, req ledgerBatchRequest) (string, error) {
	var response ledgerBatchResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&response).
		Post("/v1/submit")

	if err != nil {
		// 超时要与普通失败区分：调用方不得假定成功，也不得盲目重试
		if isTimeout(err) {
			c.logger.Error("Ledger submission timed out", zap.Error(err))
			return "", ErrLedgerTimeout
		}
		return "", fmt.Errorf("failed to call ledger service: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ledger service returned %d: %s", resp.StatusCode(), resp.String())
	}
	if response.TxRef == "" {
		return "", fmt.Errorf("ledger service returned empty txRef")
	}

	c.logger.Info("Ledger submission confirmed",
		zap.String("tx_ref", response.TxRef),
		zap.Int("transfers", len(req.Transfers)),
	)

	return response.TxRef, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
