package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
)

// PaymentVerifier 支付网关能力：核心只把它当布尔闸门，不自己记账
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentRef string) (bool, error)
}

// PaymentClient 支付网关客户端
type PaymentClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPaymentClient 创建支付网关客户端
func NewPaymentClient(cfg config.PaymentConfig, logger *zap.Logger) *PaymentClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &PaymentClient{
		httpClient: client,
		logger:     logger,
	}
}

var _ PaymentVerifier = (*PaymentClient)(nil)

type paymentIntentResponse struct {
	Status string `json:"status"`
}

// VerifyPayment 查询支付凭据是否已完成扣款
func (c *PaymentClient) VerifyPayment(ctx context.Context, paymentRef string) (bool, error) {
	var intent paymentIntentResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&intent).
		Get("/v1/payment_intents/" + paymentRef)

	if err != nil {
		return false, fmt.Errorf("failed to verify payment: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("Payment verification",
		zap.String("payment_ref", paymentRef),
		zap.String("status", intent.Status),
	)

	return intent.Status == "succeeded", nil
}
